// Package container implements the reversible TWFF archive codec: it
// reads and writes the packaged zip, cross-checks the internal
// manifest, and surfaces integrity verification as a non-fatal flag.
package container

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Functional-Intelligence-Research-Lab/twff/core/eventlog"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
)

// Verification distinguishes a certified artifact from one that is
// loadable but not certified.
type Verification string

const (
	// VerificationVerified: a digest was present and matched.
	VerificationVerified Verification = "verified"
	// VerificationFailed: a digest was present and did not match.
	VerificationFailed Verification = "failed"
	// VerificationUnverified: no digest was stored.
	VerificationUnverified Verification = "unverified"
)

// Asset is an optional archive member (images, attachments) carried
// alongside the fixed-path members.
type Asset struct {
	Path string
	Data []byte
}

// Container owns the decoded artifact: content bytes, the event log,
// and the optional members. It is read-only after assembly; any change
// produces a new Container.
type Container struct {
	ContentPath  string
	Content      []byte
	Log          *eventlog.Log
	Integrity    *schematwff.IntegrityRecord
	Manifest     *schematwff.Manifest
	Transcript   *schematwff.ChatTranscript
	Signatures   []byte
	Assets       []Asset
	Verification Verification
}

// Members lists every archive member path the container holds, sorted.
func (c *Container) Members() []string {
	members := []string{c.ContentPath, schematwff.ProcessLogPath}
	for _, asset := range c.Assets {
		members = append(members, asset.Path)
	}
	if c.Manifest != nil {
		members = append(members, schematwff.ManifestPath)
	}
	if c.Transcript != nil {
		members = append(members, schematwff.ChatTranscriptPath)
	}
	if len(c.Signatures) > 0 {
		members = append(members, schematwff.SignaturesPath)
	}
	sort.Strings(members)
	return members
}

// BuildManifest constructs a manifest covering every member of the
// container except the manifest itself, in encode order.
func BuildManifest(c *Container) *schematwff.Manifest {
	manifest := &schematwff.Manifest{}
	add := func(id, href, mediaType string) {
		manifest.Items = append(manifest.Items, schematwff.ManifestItem{
			ID:        id,
			Href:      href,
			MediaType: mediaType,
		})
	}
	add("content", c.ContentPath, schematwff.MediaTypeXHTML)
	for index, asset := range sortedAssets(c.Assets) {
		add(assetID(index), asset.Path, assetMediaType(asset.Path))
	}
	add("log", schematwff.ProcessLogPath, schematwff.MediaTypeJSON)
	if c.Transcript != nil {
		add("chat", schematwff.ChatTranscriptPath, schematwff.MediaTypeJSON)
	}
	if len(c.Signatures) > 0 {
		add("signatures", schematwff.SignaturesPath, schematwff.MediaTypeXML)
	}
	return manifest
}

func sortedAssets(assets []Asset) []Asset {
	sorted := make([]Asset, len(assets))
	copy(sorted, assets)
	sort.Slice(sorted, func(left, right int) bool {
		return sorted[left].Path < sorted[right].Path
	})
	return sorted
}

func assetID(index int) string {
	return "asset-" + strconv.Itoa(index+1)
}

func assetMediaType(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(lower, ".json"):
		return schematwff.MediaTypeJSON
	case strings.HasSuffix(lower, ".xhtml"), strings.HasSuffix(lower, ".html"):
		return schematwff.MediaTypeXHTML
	default:
		return "application/octet-stream"
	}
}
