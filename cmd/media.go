package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abate-Agegnehu/musiccollectionbackend/config"
	"github.com/abate-Agegnehu/musiccollectionbackend/storage"
)

var (
	mediaPrefix    string
	mediaRecursive bool
	mediaStats     bool
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Inspect and clean up stored media",
}

var mediaListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List media objects in the MinIO bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.MediaProvider != config.ProviderMinio {
			return errNotMinio
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		store, err := newMinioStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		objects, stats, err := store.ListObjects(cmd.Context(), mediaPrefix, mediaRecursive)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if mediaStats {
			fmt.Fprintf(out, "bucket:        %s\n", store.Bucket())
			fmt.Fprintf(out, "objects:       %d\n", stats.TotalObjects)
			fmt.Fprintf(out, "total size:    %s\n", formatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Fprintf(out, "last modified: %s\n", stats.LastModified.Format(time.RFC3339))
			}
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED\tTYPE")
		for _, o := range objects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Key, formatSize(o.Size), o.LastModified.Format(time.RFC3339), o.ContentType)
		}
		return w.Flush()
	},
}

var mediaRemoveCmd = &cobra.Command{
	Use:   "rm <media-id>...",
	Short: "Destroy media objects by id with the configured provider",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		a := &app{}
		if err := a.openMediaStore(cmd.Context(), cfg); err != nil {
			return err
		}

		for _, id := range args {
			if err := a.media.Destroy(cmd.Context(), id, storage.DestroyOptions{Kind: storage.ResourceVideo}); err != nil {
				return fmt.Errorf("destroy %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "destroyed %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mediaCmd)
	mediaCmd.AddCommand(mediaListCmd, mediaRemoveCmd)

	mediaListCmd.Flags().StringVarP(&mediaPrefix, "prefix", "p", "", "only list keys with this prefix")
	mediaListCmd.Flags().BoolVarP(&mediaRecursive, "recursive", "r", true, "descend into prefixes")
	mediaListCmd.Flags().BoolVarP(&mediaStats, "stats", "s", false, "print bucket totals only")

	mediaCmd.Example = `  # list everything under video/
  musiccollection media ls -p video/

  # bucket totals
  musiccollection media ls -s

  # remove orphaned objects
  musiccollection media rm video/3f0c....mp3`
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

