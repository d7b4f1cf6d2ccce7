// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package lootboard

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	json "github.com/goccy/go-json"
)

// Renderer turns board data into artifact bytes. The pipeline treats the
// output as opaque; layout is the renderer's business alone.
type Renderer interface {
	Render(ctx context.Context, board *BoardData) (data []byte, contentType string, err error)
}

// JSONRenderer renders the board as a JSON document. It is the default
// renderer and the shape consumed by dashboard frontends.
type JSONRenderer struct{}

// Render implements Renderer.
func (JSONRenderer) Render(_ context.Context, board *BoardData) ([]byte, string, error) {
	data, err := json.Marshal(struct {
		GroupID   int64  `json:"group_id"`
		GroupName string `json:"group_name,omitempty"`
		Period    string `json:"period"`
		Version   int64  `json:"version"`
		Entries   any    `json:"entries"`
	}{board.GroupID, board.GroupName, board.Period.String(), board.Version, board.Entries})
	if err != nil {
		return nil, "", fmt.Errorf("failed to render board json: %w", err)
	}
	return data, "application/json", nil
}

// PNGRenderer renders the board as a horizontal bar chart image, one bar
// per entry scaled against the leader's total.
type PNGRenderer struct {
	// Width is the image width in pixels. Zero uses 600.
	Width int
	// RowHeight is the per-entry bar height in pixels. Zero uses 24.
	RowHeight int
}

// Render implements Renderer.
func (r PNGRenderer) Render(ctx context.Context, board *BoardData) ([]byte, string, error) {
	width := r.Width
	if width <= 0 {
		width = 600
	}
	rowHeight := r.RowHeight
	if rowHeight <= 0 {
		rowHeight = 24
	}

	rows := len(board.Entries)
	if rows == 0 {
		rows = 1
	}
	height := rows * rowHeight

	var maxTotal int64 = 1
	for _, e := range board.Entries {
		if e.Total > maxTotal {
			maxTotal = e.Total
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	background := color.RGBA{R: 24, G: 26, B: 31, A: 255}
	bar := color.RGBA{R: 218, G: 165, B: 32, A: 255}
	divider := color.RGBA{R: 48, G: 52, B: 61, A: 255}

	for y := 0; y < height; y++ {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		for x := 0; x < width; x++ {
			img.Set(x, y, background)
		}
	}

	for i, e := range board.Entries {
		barWidth := int(int64(width-8) * e.Total / maxTotal)
		top := i * rowHeight
		for y := top + 4; y < top+rowHeight-4; y++ {
			for x := 4; x < 4+barWidth; x++ {
				img.Set(x, y, bar)
			}
		}
		for x := 0; x < width; x++ {
			img.Set(x, top+rowHeight-1, divider)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("failed to encode board png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
