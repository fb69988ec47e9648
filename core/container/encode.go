package container

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/Functional-Intelligence-Research-Lab/twff/core/canon"
	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/fsx"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/zipx"
)

// Encode writes the container's members in a fixed order (content,
// content-embedded assets, other assets, process log, manifest, chat
// transcript, signatures) with deterministic zip metadata, so
// re-encoding an unchanged container is byte-for-byte stable.
func Encode(c *Container) ([]byte, error) {
	if c == nil || c.Log == nil {
		return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeMissingRequiredMember,
			"container has no event log")
	}
	if c.Content == nil {
		return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeMissingRequiredMember,
			"container has no content member")
	}
	contentPath := c.ContentPath
	if contentPath == "" {
		contentPath = schematwff.DefaultContentPath
	}
	if !strings.HasPrefix(contentPath, "content/") {
		return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeContentSourceMismatch,
			"content path %q must live under content/", contentPath)
	}
	if c.Log.ContentSource() != contentPath {
		return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeContentSourceMismatch,
			"content path %q does not match log content_source %q", contentPath, c.Log.ContentSource())
	}

	logBytes, err := encodeProcessLog(c)
	if err != nil {
		return nil, err
	}
	var transcriptBytes []byte
	if c.Transcript != nil {
		transcriptBytes, err = json.MarshalIndent(c.Transcript, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode chat transcript: %w", err)
		}
	}

	files := []zipx.File{{Path: contentPath, Data: c.Content}}
	for _, asset := range orderedAssets(c.Assets) {
		files = append(files, zipx.File{Path: asset.Path, Data: asset.Data})
	}
	files = append(files, zipx.File{Path: schematwff.ProcessLogPath, Data: logBytes})

	if c.Manifest != nil {
		hashes := map[string]string{}
		for _, file := range files {
			hashes[file.Path] = canon.SHA256Hex(file.Data)
		}
		if transcriptBytes != nil {
			hashes[schematwff.ChatTranscriptPath] = canon.SHA256Hex(transcriptBytes)
		}
		if len(c.Signatures) > 0 {
			hashes[schematwff.SignaturesPath] = canon.SHA256Hex(c.Signatures)
		}
		manifestBytes, manifestErr := encodeManifest(hashedManifest(c.Manifest, hashes))
		if manifestErr != nil {
			return nil, manifestErr
		}
		files = append(files, zipx.File{Path: schematwff.ManifestPath, Data: manifestBytes})
	}
	if transcriptBytes != nil {
		files = append(files, zipx.File{Path: schematwff.ChatTranscriptPath, Data: transcriptBytes})
	}
	if len(c.Signatures) > 0 {
		files = append(files, zipx.File{Path: schematwff.SignaturesPath, Data: c.Signatures})
	}

	var buffer bytes.Buffer
	if err := zipx.WriteDeterministic(&buffer, files); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CategoryIOFailure, coreerrors.CodeMissingRequiredMember, "", false)
	}
	return buffer.Bytes(), nil
}

// WriteFile encodes the container and publishes it atomically: a
// failed encode or write leaves any previously published artifact
// untouched.
func WriteFile(path string, c *Container) error {
	encoded, err := Encode(c)
	if err != nil {
		return err
	}
	if err := fsx.WriteFileAtomic(path, encoded, 0o600); err != nil {
		return coreerrors.Wrap(fmt.Errorf("write archive: %w", err),
			coreerrors.CategoryIOFailure, coreerrors.CodeMissingRequiredMember, "", false)
	}
	return nil
}

func encodeProcessLog(c *Container) ([]byte, error) {
	wire := c.Log.Wire(c.Integrity)
	encoded, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode process log: %w", err)
	}
	return append(encoded, '\n'), nil
}

// hashedManifest stamps each listed member's sha256 into a copy of the
// manifest. Hrefs with no matching member keep whatever hash they
// carried; decode reports them as dangling.
func hashedManifest(manifest *schematwff.Manifest, hashes map[string]string) *schematwff.Manifest {
	stamped := &schematwff.Manifest{Items: make([]schematwff.ManifestItem, len(manifest.Items))}
	copy(stamped.Items, manifest.Items)
	for index := range stamped.Items {
		if digest, ok := hashes[stamped.Items[index].Href]; ok {
			stamped.Items[index].Hash = digest
		}
	}
	return stamped
}

func encodeManifest(manifest *schematwff.Manifest) ([]byte, error) {
	encoded, err := xml.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return append([]byte(xml.Header), encoded...), nil
}

// orderedAssets keeps content-embedded assets (images) ahead of loose
// assets, each group sorted by path.
func orderedAssets(assets []Asset) []Asset {
	var embedded, loose []Asset
	for _, asset := range assets {
		if strings.HasPrefix(asset.Path, "content/") {
			embedded = append(embedded, asset)
		} else {
			loose = append(loose, asset)
		}
	}
	sort.Slice(embedded, func(left, right int) bool { return embedded[left].Path < embedded[right].Path })
	sort.Slice(loose, func(left, right int) bool { return loose[left].Path < loose[right].Path })
	return append(embedded, loose...)
}
