package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pixelfield/mosaic/internal/mosaic"
)

func encodePNG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func createSession(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/session", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["session_id"] == "" {
		t.Fatal("create session returned empty id")
	}
	return resp["session_id"]
}

func uploadTiles(t *testing.T, srv *Server, id string, colors []color.RGBA) TileUploadResponse {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i, c := range colors {
		fw, err := mw.CreateFormFile("tiles", fmt.Sprintf("tile%d.png", i))
		if err != nil {
			t.Fatalf("multipart: %v", err)
		}
		fw.Write(encodePNG(t, 64, 64, c))
	}
	mw.Close()

	rec := doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/tiles", body.Bytes(), mw.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("upload tiles status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp TileUploadResponse
	decodeBody(t, rec, &resp)
	return resp
}

func TestFullRoundTrip(t *testing.T) {
	srv := New(time.Minute)
	id := createSession(t, srv)

	// Target as raw body upload.
	rec := doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/target",
		encodePNG(t, 160, 120, color.RGBA{180, 60, 60, 255}), "image/png")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload target status = %d, body %s", rec.Code, rec.Body.String())
	}
	var target TargetUploadResponse
	decodeBody(t, rec, &target)
	if target.Width != 160 || target.Height != 120 {
		t.Errorf("target = %dx%d, want 160x120", target.Width, target.Height)
	}
	if target.Analysis == nil {
		t.Error("target upload missing analysis")
	}

	tiles := uploadTiles(t, srv, id, []color.RGBA{
		{230, 40, 40, 255},
		{40, 230, 40, 255},
		{40, 40, 230, 255},
		{128, 128, 128, 255},
		{245, 245, 245, 255},
	})
	if tiles.Added != 5 || tiles.Total != 5 {
		t.Fatalf("tile upload = %+v, want 5 added, 5 total", tiles)
	}

	genBody, _ := json.Marshal(map[string]interface{}{
		"width":             160,
		"height":            120,
		"exact_tile_count":  24,
		"allow_duplicates":  true,
		"detail_multiplier": 1,
	})
	rec = doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/generate", genBody, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", rec.Code, rec.Body.String())
	}
	var gen GenerateResponse
	decodeBody(t, rec, &gen)
	if gen.Cols*gen.Rows == 0 {
		t.Errorf("generate returned empty grid %+v", gen)
	}
	if gen.Metadata.Width != 160 || gen.Metadata.Height != 120 {
		t.Errorf("dzi metadata = %dx%d, want 160x120", gen.Metadata.Width, gen.Metadata.Height)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/session/"+id+"/mosaic", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get mosaic status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("mosaic content type = %q", got)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("mosaic not decodable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 120 {
		t.Errorf("mosaic = %dx%d, want 160x120", b.Dx(), b.Dy())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/session/"+id+"/dzi.xml", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("descriptor status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `TileSize="256"`) {
		t.Errorf("descriptor missing tile size: %s", rec.Body.String())
	}

	// Level 0 always has exactly one tile.
	rec = doRequest(t, srv, http.MethodGet, "/api/session/"+id+"/dzi_files/0/0_0.jpeg", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("tile fetch status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("tile content type = %q", got)
	}
}

func TestSetDimensions(t *testing.T) {
	srv := New(time.Minute)
	id := createSession(t, srv)

	rec := doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/dimensions",
		[]byte(`{"width":3000,"height":2000}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("set dimensions status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp DimensionsResponse
	decodeBody(t, rec, &resp)
	if resp.Width != 3000 || resp.Height != 2000 {
		t.Errorf("echoed dimensions = %dx%d, want 3000x2000", resp.Width, resp.Height)
	}

	// 6e6 pixels over the tier densities 2500/1200/400.
	want := map[mosaic.Tier]int{mosaic.TierLow: 2400, mosaic.TierMedium: 5000, mosaic.TierHigh: 15000}
	for tier, count := range want {
		if got := resp.Requirements[tier]; got != count {
			t.Errorf("requirements[%s] = %d, want %d", tier, got, count)
		}
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/dimensions",
		[]byte(`{"width":0,"height":2000}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero width status = %d, want 400", rec.Code)
	}
}

func TestGenerateUsesSessionDimensions(t *testing.T) {
	srv := New(time.Minute)
	id := createSession(t, srv)

	rec := doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/target",
		encodePNG(t, 100, 100, color.RGBA{90, 90, 200, 255}), "image/png")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload target status = %d", rec.Code)
	}
	uploadTiles(t, srv, id, []color.RGBA{{90, 90, 200, 255}})

	rec = doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/dimensions",
		[]byte(`{"width":150,"height":90}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("set dimensions status = %d", rec.Code)
	}

	// No size in the generate request: the stored dimensions win over
	// the target's own 100x100.
	rec = doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/generate",
		[]byte(`{"exact_tile_count":6,"detail_multiplier":1,"allow_duplicates":true}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", rec.Code, rec.Body.String())
	}
	var gen GenerateResponse
	decodeBody(t, rec, &gen)
	if gen.Metadata.Width != 150 || gen.Metadata.Height != 90 {
		t.Errorf("mosaic = %dx%d, want the stored 150x90", gen.Metadata.Width, gen.Metadata.Height)
	}
}

func TestListAndClearTiles(t *testing.T) {
	srv := New(time.Minute)
	id := createSession(t, srv)

	uploadTiles(t, srv, id, []color.RGBA{{255, 0, 0, 255}, {0, 0, 255, 255}})

	rec := doRequest(t, srv, http.MethodGet, "/api/session/"+id+"/tiles", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list tiles status = %d", rec.Code)
	}
	var listing struct {
		Tiles []TileInfo `json:"tiles"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.Tiles) != 2 {
		t.Fatalf("listed %d tiles, want 2", len(listing.Tiles))
	}
	for _, info := range listing.Tiles {
		if info.ID == "" || !strings.HasPrefix(info.AvgHex, "#") {
			t.Errorf("malformed tile info %+v", info)
		}
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/session/"+id+"/tiles", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear tiles status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/session/"+id+"/tiles", nil, "")
	decodeBody(t, rec, &listing)
	if len(listing.Tiles) != 0 {
		t.Errorf("listed %d tiles after clear, want 0", len(listing.Tiles))
	}
}

func TestUnknownSession(t *testing.T) {
	srv := New(time.Minute)
	paths := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/session/nope/target"},
		{http.MethodPost, "/api/session/nope/dimensions"},
		{http.MethodGet, "/api/session/nope/tiles"},
		{http.MethodPost, "/api/session/nope/generate"},
		{http.MethodGet, "/api/session/nope/mosaic"},
		{http.MethodGet, "/api/session/nope/dzi.xml"},
	}
	for _, p := range paths {
		rec := doRequest(t, srv, p.method, p.path, []byte("{}"), "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", p.method, p.path, rec.Code)
		}
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	srv := New(time.Minute)
	id := createSession(t, srv)

	// No target, no tiles yet.
	rec := doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/generate",
		[]byte(`{"width":100,"height":100,"allow_duplicates":true}`), "application/json")
	if rec.Code != http.StatusPreconditionFailed {
		t.Errorf("generate without target status = %d, want 412", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/target",
		encodePNG(t, 100, 100, color.White), "image/png")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload target status = %d", rec.Code)
	}
	uploadTiles(t, srv, id, []color.RGBA{{255, 0, 0, 255}, {0, 255, 0, 255}})

	// A duplicate-free grid bigger than the pool is rejected with counts.
	rec = doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/generate",
		[]byte(`{"exact_tile_count":9,"detail_multiplier":1,"allow_duplicates":false}`), "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient tiles status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Needed int `json:"needed"`
		Have   int `json:"have"`
	}
	decodeBody(t, rec, &resp)
	if resp.Needed != 9 || resp.Have != 2 {
		t.Errorf("insufficient tiles = %+v, want needed 9, have 2", resp)
	}

	// Bad options surface as 400.
	rec = doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/generate",
		[]byte(`{"tier":"ultra","allow_duplicates":true}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad tier status = %d, want 400", rec.Code)
	}
}

func TestMosaicBeforeGenerate(t *testing.T) {
	srv := New(time.Minute)
	id := createSession(t, srv)

	for _, path := range []string{"/mosaic", "/dzi.xml", "/dzi_files/0/0_0.jpeg"} {
		rec := doRequest(t, srv, http.MethodGet, "/api/session/"+id+path, nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	srv := New(time.Minute)
	id := createSession(t, srv)

	rec := doRequest(t, srv, http.MethodDelete, "/api/session/"+id, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/session/"+id+"/tiles", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted session still resolves, status = %d", rec.Code)
	}
}

func TestBadTilePath(t *testing.T) {
	srv := New(time.Minute)
	id := createSession(t, srv)

	rec := doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/target",
		encodePNG(t, 64, 64, color.White), "image/png")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload target status = %d", rec.Code)
	}
	uploadTiles(t, srv, id, []color.RGBA{{10, 10, 10, 255}})

	rec = doRequest(t, srv, http.MethodPost, "/api/session/"+id+"/generate",
		[]byte(`{"exact_tile_count":4,"detail_multiplier":1,"allow_duplicates":true}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/session/"+id+"/dzi_files/0/garbage.jpeg", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed tile name status = %d, want 400", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/session/"+id+"/dzi_files/0/9_9.jpeg", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("out-of-range tile status = %d, want 404", rec.Code)
	}
}
