// Package analytics buckets migration submissions into daily and weekly
// counts for the admin dashboard.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bitmaskhq/migration-api/internal/storage"
)

// BucketCount is one date bucket and its submission count.
type BucketCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Data is the aggregated analytics payload.
type Data struct {
	TotalUpdates     int           `json:"totalUpdates"`
	UpdatesPerDay    []BucketCount `json:"updatesPerDay"`
	UpdatesPerWeek   []BucketCount `json:"updatesPerWeek"`
	SuccessRate      float64       `json:"successRate"`
	ActivityTimeline []BucketCount `json:"activityTimeline"`
}

// Store defines the reads the aggregator needs.
type Store interface {
	ListAttempts(ctx context.Context) ([]*storage.MigrationAttempt, error)
	GetAdminByEmail(ctx context.Context, email string) (*storage.Admin, error)
	ListAllowlistKeys(ctx context.Context, uploadedBy string) ([]string, error)
}

// Aggregator computes analytics, scoped per admin.
type Aggregator struct {
	store Store
}

// NewAggregator creates an analytics aggregator.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// ForAdmin aggregates submissions visible to the given admin. Superadmins
// see everything; other admins only see submissions whose legacy identifier
// appears in their own uploaded allowlist.
func (a *Aggregator) ForAdmin(ctx context.Context, adminEmail string) (*Data, error) {
	attempts, err := a.store.ListAttempts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	admin, err := a.store.GetAdminByEmail(ctx, adminEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}

	if admin.Role != storage.RoleSuperadmin {
		keys, err := a.store.ListAllowlistKeys(ctx, admin.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to load allowlist scope: %w", err)
		}
		scope := make(map[string]bool, len(keys))
		for _, k := range keys {
			scope[k] = true
		}
		scoped := make([]*storage.MigrationAttempt, 0, len(attempts))
		for _, at := range attempts {
			if scope[at.OldUsername] {
				scoped = append(scoped, at)
			}
		}
		attempts = scoped
	}

	return Aggregate(attempts), nil
}

// Aggregate buckets submissions by day and by week (Monday start).
func Aggregate(attempts []*storage.MigrationAttempt) *Data {
	daily := make(map[string]int)
	weekly := make(map[string]int)

	for _, at := range attempts {
		daily[formatDate(at.SubmittedAt)]++
		weekly[formatDate(weekStart(at.SubmittedAt))]++
	}

	data := &Data{
		TotalUpdates:   len(attempts),
		UpdatesPerDay:  sortedBuckets(daily),
		UpdatesPerWeek: sortedBuckets(weekly),
	}
	// All stored submissions were accepted, so the rate is flat; it stays
	// in the payload for dashboard compatibility.
	if data.TotalUpdates > 0 {
		data.SuccessRate = 100
	}
	data.ActivityTimeline = data.UpdatesPerDay

	return data
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// weekStart returns the Monday of the week containing t.
func weekStart(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return t.AddDate(0, 0, -offset)
}

func sortedBuckets(m map[string]int) []BucketCount {
	buckets := make([]BucketCount, 0, len(m))
	for date, count := range m {
		buckets = append(buckets, BucketCount{Date: date, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets
}
