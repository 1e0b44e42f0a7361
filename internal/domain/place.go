package domain

import "time"

// Place is a location saved by a user from the places provider.
type Place struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"userId"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	PlaceID   string    `json:"placeId"`
	CreatedAt time.Time `json:"createdAt"`
}
