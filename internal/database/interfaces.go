package database

import (
	"context"

	"territory-router/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Campaigns() CampaignRepository
	Addresses() AddressRepository
}

// CampaignRepository handles campaign and territory boundary persistence
type CampaignRepository interface {
	Create(ctx context.Context, c *models.Campaign) (*models.Campaign, error)
	GetByID(ctx context.Context, id int64) (*models.Campaign, error)
	GetBoundary(ctx context.Context, campaignID int64) (*models.TerritoryBoundary, error)
	// UpdateBoundary writes both the raw and snapped polygons. The raw
	// polygon is never overwritten by a snapped result; re-snapping always
	// starts from the original drawing.
	UpdateBoundary(ctx context.Context, b *models.TerritoryBoundary) error
}

// AddressRepository handles address persistence and per-address route
// assignments
type AddressRepository interface {
	ReplaceForCampaign(ctx context.Context, campaignID int64, addrs []models.AddressPoint) ([]models.AddressPoint, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]models.AddressPoint, error)
	// ApplyAssignments clears all assignments for the campaign and writes
	// the new ones in a single transaction.
	ApplyAssignments(ctx context.Context, campaignID int64, assignments []models.RouteAssignment) error
	ListAssignments(ctx context.Context, campaignID int64) ([]models.RouteAssignment, error)
}
