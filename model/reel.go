package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SourceType says where a reel originally came from.
type SourceType string

const (
	// Fetched from an external search or scrape provider.
	SourceTypeExternal SourceType = "external"
	// Matched from reels already in our own catalog.
	SourceTypeInternal SourceType = "internal"
	// Produced by the generative video pipeline.
	SourceTypeGenerated SourceType = "generated"
)

// ReelMetadata is the typed shape stored in the Reel.Metadata json column.
// Everything in here is best-effort provider detail, never load-bearing for
// feed assembly.
type ReelMetadata struct {
	WatchUrl  string                 `json:"watchUrl,omitempty"`
	Provider  string                 `json:"provider,omitempty"`
	Author    string                 `json:"author,omitempty"`
	PlayCount int64                  `json:"playCount,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// ToJSON serializes the metadata for storage. Zero-valued metadata encodes
// to an empty column instead of "{}".
func (m ReelMetadata) ToJSON() (datatypes.JSON, error) {
	if m.WatchUrl == "" && m.Provider == "" && m.Author == "" && m.PlayCount == 0 && len(m.Extra) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(encoded), nil
}

/*

Reel is the canonical record of one short video, shared across every feed
that places it.

Id: uuid
CreatedAt/UpdatedAt: row timestamps

VideoUrl: directly playable url, unique when present. Nil only for generated
	reels whose rendering has not finished yet.
SourceReference: provider-scoped stable id (e.g. a job id or a platform video
	id), unique when present. Together with VideoUrl these two columns are the
	dedup keys: a candidate matching either resolves to the existing row.
Title/Description/ThumbnailUrl/DurationSeconds: optional display fields,
	fill-merged on upsert, an existing non-empty value is never overwritten.
SourceType: external | internal | generated
Metadata: json blob in the ReelMetadata shape

*/
type Reel struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	VideoUrl        *string `gorm:"uniqueIndex"`
	SourceReference *string `gorm:"uniqueIndex"`
	Title           *string
	Description     *string
	ThumbnailUrl    *string
	DurationSeconds *int
	SourceType      SourceType
	Metadata        datatypes.JSON
}

// ParsedMetadata decodes the metadata column, nil when absent or unreadable.
func (r *Reel) ParsedMetadata() *ReelMetadata {
	if len(r.Metadata) == 0 {
		return nil
	}
	var m ReelMetadata
	if err := json.Unmarshal(r.Metadata, &m); err != nil {
		return nil
	}
	return &m
}
