package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Functional-Intelligence-Research-Lab/twff/core/container"
	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/fsx"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/project"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/session"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/styles"
)

type inspectResult struct {
	SessionID     string         `json:"session_id"`
	UserID        string         `json:"user_id"`
	Version       string         `json:"version"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	ContentSource string         `json:"content_source"`
	EventCount    int            `json:"event_count"`
	EventsByKind  map[string]int `json:"events_by_kind"`
	Members       []string       `json:"members"`
	Verification  string         `json:"verification"`
}

func runInspect(arguments []string) int {
	if len(arguments) != 1 {
		fmt.Fprintln(os.Stderr, "usage: twff inspect <file.twff>")
		return exitUsage
	}
	decoded, err := container.DecodeFile(arguments[0])
	if err != nil {
		return writeCommandError("inspect", err)
	}
	events := decoded.Log.Events()
	byKind := map[string]int{}
	for _, event := range events {
		byKind[string(event.Kind)]++
	}
	result := inspectResult{
		SessionID:     decoded.Log.SessionID(),
		UserID:        decoded.Log.UserID(),
		Version:       decoded.Log.Version(),
		StartTime:     decoded.Log.StartTime(),
		EndTime:       decoded.Log.EndTime(),
		ContentSource: decoded.ContentPath,
		EventCount:    len(events),
		EventsByKind:  byKind,
		Members:       decoded.Members(),
		Verification:  string(decoded.Verification),
	}
	return writeJSON(result)
}

type verifyResult struct {
	SessionID    string `json:"session_id"`
	Verification string `json:"verification"`
	Algorithm    string `json:"algorithm,omitempty"`
	Digest       string `json:"digest,omitempty"`
	EventCount   int    `json:"event_count"`
}

func runVerify(arguments []string) int {
	if len(arguments) != 1 {
		fmt.Fprintln(os.Stderr, "usage: twff verify <file.twff>")
		return exitUsage
	}
	decoded, err := container.DecodeFile(arguments[0])
	if err != nil {
		return writeCommandError("verify", err)
	}
	result := verifyResult{
		SessionID:    decoded.Log.SessionID(),
		Verification: string(decoded.Verification),
		EventCount:   decoded.Log.Len(),
	}
	if decoded.Integrity != nil {
		result.Algorithm = decoded.Integrity.Algorithm
		result.Digest = decoded.Integrity.Digest
	}
	if code := writeJSON(result); code != exitOK {
		return code
	}
	if decoded.Verification == container.VerificationFailed {
		return exitError
	}
	return exitOK
}

func runProject(arguments []string) int {
	flags := flag.NewFlagSet("project", flag.ContinueOnError)
	stylesPath := flags.String("styles", "", "style registry TOML")
	outputPath := flags.String("o", "", "output path")
	if err := flags.Parse(arguments); err != nil {
		return exitUsage
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: twff project <file.twff> [--styles reg.toml] [-o out.html]")
		return exitUsage
	}

	registry := styles.Default()
	if *stylesPath != "" {
		loaded, err := styles.LoadTOML(*stylesPath)
		if err != nil {
			return writeCommandError("project", err)
		}
		registry = loaded
	}
	decoded, err := container.DecodeFile(flags.Arg(0))
	if err != nil {
		return writeCommandError("project", err)
	}
	sequence, err := project.Project(string(decoded.Content), decoded.Log.Events(), registry)
	if err != nil {
		return writeCommandError("project", err)
	}

	var rendered bytes.Buffer
	if err := project.RenderHTML(&rendered, sequence); err != nil {
		return writeCommandError("project", err)
	}
	if *outputPath == "" {
		fmt.Println(rendered.String())
		return exitOK
	}
	if err := fsx.WriteFileAtomic(*outputPath, rendered.Bytes(), 0o644); err != nil {
		return writeCommandError("project", err)
	}
	return exitOK
}

func runDemo(arguments []string) int {
	flags := flag.NewFlagSet("demo", flag.ContinueOnError)
	outputPath := flags.String("o", "demo.twff", "output path")
	if err := flags.Parse(arguments); err != nil {
		return exitUsage
	}

	start := time.Now().UTC()
	recorder, err := session.NewRecorder(session.Options{StartTime: start})
	if err != nil {
		return writeCommandError("demo", err)
	}
	content := "<p>The committee reviewed the findings. A broader rollout is planned for next quarter.</p>"
	steps := []func() error{
		func() error { return recorder.LogEdit(start.Add(1*time.Second), 3, 40) },
		func() error {
			return recorder.LogAIInteraction(start.Add(2*time.Second), session.AIInteraction{
				InteractionType: schematwff.InteractionParaphrase,
				Model:           "llama3",
				OutputLength:    47,
				PositionStart:   41,
				PositionEnd:     88,
				Acceptance:      schematwff.AcceptanceFull,
			})
		},
		func() error { return recorder.LogCheckpoint(start.Add(3*time.Second), len(content), 14, 88) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return writeCommandError("demo", err)
		}
	}
	exported, err := recorder.Export([]byte(content), session.ExportOptions{
		EndTime: start.Add(4 * time.Second),
		Path:    *outputPath,
	})
	if err != nil {
		return writeCommandError("demo", err)
	}
	return writeJSON(map[string]any{
		"path":       *outputPath,
		"session_id": exported.Log.SessionID(),
		"events":     exported.Log.Len(),
		"digest":     exported.Integrity.Digest,
	})
}

func writeJSON(value any) int {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		return exitError
	}
	fmt.Println(string(encoded))
	return exitOK
}

func writeCommandError(command string, err error) int {
	payload := map[string]any{
		"command": command,
		"error":   err.Error(),
	}
	if code := coreerrors.CodeOf(err); code != "" {
		payload["code"] = code
	}
	if violations := coreerrors.ViolationsOf(err); len(violations) > 0 {
		payload["violations"] = violations
	}
	encoded, marshalErr := json.MarshalIndent(payload, "", "  ")
	if marshalErr != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	fmt.Fprintln(os.Stderr, string(encoded))
	return exitError
}
