package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Music is a stored audio/video clip record.
type Music struct {
	ID           string    `json:"_id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Email        string    `json:"email"`
	Avatar       string    `json:"avatar"`        // Secure URL of the hosted media
	CloudinaryID string    `json:"cloudinary_id"` // Media store handle used for deletion
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MusicFields is the mutable part of a record.
type MusicFields struct {
	Title        string
	Artist       string
	Email        string
	Avatar       string
	CloudinaryID string
}

// Fields returns the mutable part of m.
func (m *Music) Fields() MusicFields {
	return MusicFields{
		Title:        m.Title,
		Artist:       m.Artist,
		Email:        m.Email,
		Avatar:       m.Avatar,
		CloudinaryID: m.CloudinaryID,
	}
}

// Apply copies f onto m.
func (m *Music) Apply(f MusicFields) {
	m.Title = f.Title
	m.Artist = f.Artist
	m.Email = f.Email
	m.Avatar = f.Avatar
	m.CloudinaryID = f.CloudinaryID
}

// NewMusicID generates a record id. Every backend uses the object id shape
// so ids can be checked without touching the store.
func NewMusicID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidMusicID reports whether id has the record id shape.
func IsValidMusicID(id string) bool {
	return primitive.IsValidObjectID(id)
}
