package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/pixelfield/mosaic/internal/analysis"
	"github.com/pixelfield/mosaic/internal/colorspace"
	"github.com/pixelfield/mosaic/internal/dzi"
	"github.com/pixelfield/mosaic/internal/mosaic"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// TargetUploadResponse reports the uploaded target's dimensions and its
// complexity analysis.
type TargetUploadResponse struct {
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	Analysis *analysis.Result `json:"analysis"`
}

func (s *Server) handleUploadTarget(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}

	data, err := readUpload(r, "target")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	width, height, err := sess.SetTarget(data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TargetUploadResponse{
		Width:    width,
		Height:   height,
		Analysis: analysis.Analyze(sess.Target(), width, height),
	})
}

// DimensionsRequest carries the desired output dimensions.
type DimensionsRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DimensionsResponse echoes the stored dimensions and reports, per
// resolution tier, how many tiles a duplicate-free mosaic of that size
// would need.
type DimensionsResponse struct {
	Width        int                 `json:"width"`
	Height       int                 `json:"height"`
	Requirements map[mosaic.Tier]int `json:"requirements"`
}

func (s *Server) handleSetDimensions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}

	var req DimensionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Width < 1 || req.Height < 1 {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid output dimensions %dx%d", req.Width, req.Height))
		return
	}

	sess.SetDimensions(req.Width, req.Height)

	requirements := make(map[mosaic.Tier]int, len(mosaic.Tiers))
	for _, tier := range mosaic.Tiers {
		count, err := mosaic.TileCountFor(tier, req.Width, req.Height)
		if err != nil {
			continue
		}
		requirements[tier] = count
	}
	writeJSON(w, http.StatusOK, DimensionsResponse{
		Width:        req.Width,
		Height:       req.Height,
		Requirements: requirements,
	})
}

// TileUploadResponse summarizes one tile upload batch. Skipped counts
// per-file decode failures; those are non-fatal.
type TileUploadResponse struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

func (s *Server) handleUploadTiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse upload: %v", err))
		return
	}

	var resp TileUploadResponse
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				resp.Skipped++
				continue
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				resp.Skipped++
				continue
			}
			if _, err := sess.Pool().Add(data); err != nil {
				log.Printf("server: skipping tile %q: %v", fh.Filename, err)
				resp.Skipped++
				continue
			}
			resp.Added++
		}
	}
	resp.Total = sess.Pool().Count()
	writeJSON(w, http.StatusOK, resp)
}

// TileInfo is one pooled tile in a listing response.
type TileInfo struct {
	ID       string         `json:"id"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	AvgColor colorspace.Lab `json:"avg_color"`
	AvgHex   string         `json:"avg_hex"`
}

func (s *Server) handleListTiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}

	tiles := sess.Pool().List()
	infos := make([]TileInfo, 0, len(tiles))
	for _, t := range tiles {
		cr, cg, cb := colorspace.LabToRGB(t.AvgColor)
		hex := colorful.Color{
			R: float64(cr) / 255.0,
			G: float64(cg) / 255.0,
			B: float64(cb) / 255.0,
		}.Hex()
		infos = append(infos, TileInfo{
			ID:       t.ID,
			Width:    t.Width,
			Height:   t.Height,
			AvgColor: t.AvgColor,
			AvgHex:   hex,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tiles": infos})
}

func (s *Server) handleClearTiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	sess.Pool().Clear()
	w.WriteHeader(http.StatusNoContent)
}

// GenerateRequest carries the output dimensions plus the mosaic options.
type GenerateRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	mosaic.Options
}

// GenerateResponse reports a finished generation.
type GenerateResponse struct {
	Cols     int          `json:"cols"`
	Rows     int          `json:"rows"`
	Metadata dzi.Metadata `json:"dzi"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Size priority: request body, then session dimensions, then the
	// target's own size.
	if req.Width == 0 || req.Height == 0 {
		req.Width, req.Height = sess.Dimensions()
	}
	if req.Width == 0 || req.Height == 0 {
		if target := sess.Target(); target != nil {
			b := target.Bounds()
			req.Width, req.Height = b.Dx(), b.Dy()
		}
	}

	if err := sess.BeginGeneration(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	defer sess.EndGeneration()

	result, err := s.generator.Generate(sess.Target(), sess.Pool().List(), req.Width, req.Height, req.Options)
	if err != nil {
		writeGenerateError(w, err)
		return
	}

	// The session may have been deleted while the generation ran; the
	// result is discarded then, never published.
	if !s.sessions.Live(sess.ID) {
		writeError(w, http.StatusGone, "session destroyed during generation")
		return
	}
	sess.SetResult(result.MosaicPNG, result.Pyramid)

	writeJSON(w, http.StatusOK, GenerateResponse{
		Cols:     result.Grid.Cols,
		Rows:     result.Grid.Rows,
		Metadata: result.Metadata,
	})
}

// writeGenerateError maps the engine's error taxonomy onto HTTP codes.
func writeGenerateError(w http.ResponseWriter, err error) {
	var insufficient *mosaic.InsufficientTilesError
	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  insufficient.Error(),
			"needed": insufficient.Needed,
			"have":   insufficient.Have,
		})
	case errors.Is(err, mosaic.ErrNoTarget), errors.Is(err, mosaic.ErrNoTiles):
		writeError(w, http.StatusPreconditionFailed, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleGetMosaic(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	data := sess.Mosaic()
	if data == nil {
		writeError(w, http.StatusNotFound, "no mosaic generated yet")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	pyramid := sess.Pyramid()
	if pyramid == nil {
		writeError(w, http.StatusNotFound, "no mosaic generated yet")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	io.WriteString(w, pyramid.Metadata().Descriptor())
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	pyramid := sess.Pyramid()
	if pyramid == nil {
		writeError(w, http.StatusNotFound, "no mosaic generated yet")
		return
	}

	level, x, y, err := dzi.ParseTilePath(r.PathValue("level") + "/" + r.PathValue("tile"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, ok := pyramid.Tile(level, x, y)
	if !ok {
		// Holes from skipped tile encodes land here too.
		writeError(w, http.StatusNotFound, "tile not found")
		return
	}

	contentType := "image/jpeg"
	if pyramid.Metadata().Format == "png" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// readUpload extracts one uploaded file, accepting either a multipart
// form field or a raw request body.
func readUpload(r *http.Request, field string) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		f, _, ferr := r.FormFile(field)
		if ferr != nil {
			return nil, fmt.Errorf("missing %q upload field", field)
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty upload")
	}
	return data, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
