package service

import "SimEcon/internal/domain/models"

// Collaborator systems outside the economy core. Market fill ratios and
// enforcement pressure arrive as kafka signals; property is queried here.

// PropertyRegistry reports owned-area size for property tax.
type PropertyRegistry interface {
	OwnedChunks(actor models.ActorID) int
}

// NoProperty owns nothing.
type NoProperty struct{}

func (NoProperty) OwnedChunks(models.ActorID) int { return 0 }
