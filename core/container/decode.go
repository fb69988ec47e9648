package container

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Functional-Intelligence-Research-Lab/twff/core/canon"
	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/eventlog"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/integrity"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/zipx"
)

// Decode opens an archive, locates members by the fixed path table,
// validates the process log, cross-checks the manifest, and verifies
// the integrity digest. A digest mismatch does not abort: the returned
// container carries VerificationFailed so the artifact stays loadable
// but uncertified.
func Decode(data []byte) (*Container, error) {
	reader, err := zipx.OpenBytes(data)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, coreerrors.CodeMissingRequiredMember,
			"input is not a readable zip archive", false)
	}

	members := map[string][]byte{}
	memberPaths := make([]string, 0, len(reader.File))
	for _, zipFile := range reader.File {
		name := filepath.ToSlash(zipFile.Name)
		if strings.HasSuffix(name, "/") {
			continue
		}
		memberData, readErr := zipx.ReadFile(zipFile)
		if readErr != nil {
			return nil, coreerrors.Wrap(fmt.Errorf("read member %s: %w", name, readErr),
				coreerrors.CategoryIOFailure, coreerrors.CodeMissingRequiredMember, "", false)
		}
		members[name] = memberData
		memberPaths = append(memberPaths, name)
	}
	sort.Strings(memberPaths)

	// 1. Required members.
	logBytes, hasLog := members[schematwff.ProcessLogPath]
	if !hasLog {
		return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeMissingRequiredMember,
			"archive is missing required member %s", schematwff.ProcessLogPath)
	}
	if !hasContentMember(memberPaths) {
		return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeMissingRequiredMember,
			"archive is missing a content/ member")
	}

	// 2. Process log schema, all violations in one pass.
	log, integrityRecord, err := eventlog.Parse(logBytes)
	if err != nil {
		return nil, err
	}

	// Transcript references are only checkable once the member set is
	// known, so they extend the same schema stage.
	if err := checkTranscriptRefs(log, members); err != nil {
		return nil, err
	}

	// 3. content_source must name an actual content member.
	contentPath := log.ContentSource()
	content, hasContent := members[contentPath]
	if !hasContent || !strings.HasPrefix(contentPath, "content/") {
		return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeContentSourceMismatch,
			"content_source %q does not match any content member in the archive", contentPath)
	}

	// 4. Manifest, when present, must list exactly the member set.
	var manifest *schematwff.Manifest
	if manifestBytes, ok := members[schematwff.ManifestPath]; ok {
		manifest = &schematwff.Manifest{}
		if err := xml.Unmarshal(manifestBytes, manifest); err != nil {
			return nil, coreerrors.Wrap(fmt.Errorf("parse %s: %w", schematwff.ManifestPath, err),
				coreerrors.CategoryInvalidInput, coreerrors.CodeManifestMismatch, "", false)
		}
		if err := checkManifest(manifest, memberPaths, members); err != nil {
			return nil, err
		}
	}

	var transcript *schematwff.ChatTranscript
	if transcriptBytes, ok := members[schematwff.ChatTranscriptPath]; ok {
		transcript = &schematwff.ChatTranscript{}
		if err := json.Unmarshal(transcriptBytes, transcript); err != nil {
			return nil, coreerrors.Wrap(fmt.Errorf("parse %s: %w", schematwff.ChatTranscriptPath, err),
				coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation, "", false)
		}
	}

	// 5. Integrity digest is non-fatal: report, never abort.
	verification := VerificationUnverified
	if integrityRecord != nil {
		status, verifyErr := integrity.Verify(log, *integrityRecord)
		if verifyErr != nil || status != integrity.StatusMatched {
			verification = VerificationFailed
		} else {
			verification = VerificationVerified
		}
	}

	decoded := &Container{
		ContentPath:  contentPath,
		Content:      content,
		Log:          log,
		Integrity:    integrityRecord,
		Manifest:     manifest,
		Transcript:   transcript,
		Verification: verification,
	}
	if signatureBytes, ok := members[schematwff.SignaturesPath]; ok {
		decoded.Signatures = signatureBytes
	}
	for _, path := range memberPaths {
		if isFixedMember(path) || path == contentPath {
			continue
		}
		decoded.Assets = append(decoded.Assets, Asset{Path: path, Data: members[path]})
	}
	return decoded, nil
}

// DecodeFile reads and decodes an archive from disk.
func DecodeFile(path string) (*Container, error) {
	// #nosec G304 -- archive path is an explicit local path.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("read archive: %w", err),
			coreerrors.CategoryIOFailure, coreerrors.CodeMissingRequiredMember, "", false)
	}
	return Decode(data)
}

func hasContentMember(memberPaths []string) bool {
	for _, path := range memberPaths {
		if strings.HasPrefix(path, "content/") {
			return true
		}
	}
	return false
}

func isFixedMember(path string) bool {
	switch path {
	case schematwff.ProcessLogPath, schematwff.ManifestPath,
		schematwff.ChatTranscriptPath, schematwff.SignaturesPath:
		return true
	}
	return false
}

func checkTranscriptRefs(log *eventlog.Log, members map[string][]byte) error {
	list := &coreerrors.ViolationList{}
	for index, event := range log.Events() {
		chat, ok := event.Meta.(schematwff.ChatInteractionMeta)
		if !ok {
			continue
		}
		if _, exists := members[chat.SourceFile]; !exists {
			list.Add(coreerrors.Violation{
				Code:       coreerrors.CodeSchemaViolation,
				EventIndex: index,
				Field:      "source_file",
				Reason:     fmt.Sprintf("references member %q which is not in the archive", chat.SourceFile),
			})
		}
	}
	return list.ErrOrNil()
}

func checkManifest(manifest *schematwff.Manifest, memberPaths []string, members map[string][]byte) error {
	listed := map[string]struct{}{}
	var extra, corrupt []string
	for _, item := range manifest.Items {
		href := filepath.ToSlash(item.Href)
		if _, duplicate := listed[href]; duplicate {
			extra = append(extra, href)
			continue
		}
		listed[href] = struct{}{}
		if data, ok := members[href]; ok && item.Hash != "" {
			if !strings.EqualFold(canon.SHA256Hex(data), item.Hash) {
				corrupt = append(corrupt, href)
			}
		}
	}

	actual := map[string]struct{}{}
	var missing []string
	for _, path := range memberPaths {
		if path == schematwff.ManifestPath {
			// The manifest never lists itself.
			continue
		}
		actual[path] = struct{}{}
		if _, ok := listed[path]; !ok {
			missing = append(missing, path)
		}
	}
	for href := range listed {
		if _, ok := actual[href]; !ok {
			extra = append(extra, href)
		}
	}
	if len(missing) == 0 && len(extra) == 0 && len(corrupt) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	sort.Strings(corrupt)
	return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeManifestMismatch,
		"manifest does not match archive members: unlisted %v, dangling %v, hash mismatch %v", missing, extra, corrupt)
}
