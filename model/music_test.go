package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMusicIDShape(t *testing.T) {
	id := NewMusicID()

	assert.Len(t, id, 24)
	assert.True(t, IsValidMusicID(id))
	assert.False(t, IsValidMusicID("123"))
	assert.False(t, IsValidMusicID("zzzzzzzzzzzzzzzzzzzzzzzz"))
	assert.False(t, IsValidMusicID(""))
}

func TestFieldsRoundTrip(t *testing.T) {
	m := &Music{ID: NewMusicID(), Title: "Intro", Artist: "The xx", Email: "a@b.c", Avatar: "https://x/y.mp3", CloudinaryID: "music/y"}

	f := m.Fields()
	f.Title = "Crystalised"
	m.Apply(f)

	assert.Equal(t, "Crystalised", m.Title)
	assert.Equal(t, "The xx", m.Artist)
	assert.Equal(t, "music/y", m.CloudinaryID)
}

func TestStagedFileIsMedia(t *testing.T) {
	assert.True(t, (&StagedFile{MimeType: "audio/mpeg"}).IsMedia())
	assert.True(t, (&StagedFile{MimeType: "video/mp4"}).IsMedia())
	assert.False(t, (&StagedFile{MimeType: "image/png"}).IsMedia())
	assert.False(t, (&StagedFile{MimeType: ""}).IsMedia())
}
