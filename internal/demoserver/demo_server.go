package demoserver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/medtriage/internal/analyzer"
	"github.com/raysh454/medtriage/internal/model"
)

// Mode switches what POST /api/analysis answers, so clients can be exercised
// against each failure the real service produces.
type Mode string

const (
	ModeOK        Mode = "ok"        // deterministic findings
	ModeError     Mode = "error"     // 500 with a message
	ModeMalformed Mode = "malformed" // 200 with a body that fails validation
	ModeGarbage   Mode = "garbage"   // 200 with a non-JSON body
)

// ParseMode accepts one of the Mode values.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeOK, ModeError, ModeMalformed, ModeGarbage:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// placeholderImage is a 1x1 transparent PNG.
const placeholderImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// DemoServer is a stand-in for the analysis service. Findings are derived
// from the SHA-256 of the upload, so the same file always yields the same
// result.
type DemoServer struct {
	cfg  Config
	mu   sync.RWMutex
	mode Mode
	now  func() time.Time
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config) *DemoServer {
	def := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.Findings <= 0 {
		cfg.Findings = def.Findings
	}
	cfg.Findings = min(cfg.Findings, len(model.KnownConditions))
	if cfg.InitialMode == "" {
		cfg.InitialMode = ModeOK
	}
	return &DemoServer{cfg: cfg, mode: cfg.InitialMode, now: time.Now}
}

// Handler returns the routes served by the demo server.
func (s *DemoServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/analysis", s.analysisHandler)

	// Control endpoints for switching response modes
	r.Get("/demo/mode", s.getModeHandler)
	r.Post("/demo/mode", s.setModeHandler)
	return r
}

// Start starts the demo server.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Demo analysis service on http://localhost%s/api/analysis\n", addr)
	fmt.Printf("Switch modes with POST http://localhost%s/demo/mode\n", addr)
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 15 * time.Second}
	return srv.ListenAndServe()
}

func (s *DemoServer) currentMode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// analysisHandler mirrors the analysis service contract: a multipart "file"
// part in, a result object or {"message": ...} out.
func (s *DemoServer) analysisHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	var (
		name string
		sum  []byte
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeReadError(w, err)
			return
		}
		if part.FormName() != analyzer.DefaultFieldName || part.FileName() == "" {
			part.Close()
			continue
		}
		h := sha256.New()
		_, err = io.Copy(h, part)
		part.Close()
		if err != nil {
			s.writeReadError(w, err)
			return
		}
		name, sum = part.FileName(), h.Sum(nil)
		break
	}
	if sum == nil {
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	switch s.currentMode() {
	case ModeError:
		writeMessage(w, http.StatusInternalServerError, "Model unavailable")
	case ModeMalformed:
		writeJSON(w, http.StatusOK, map[string]any{"patientName": patientName(name), "findings": "pending"})
	case ModeGarbage:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "<html><body>upstream proxy error</body></html>")
	default:
		writeJSON(w, http.StatusOK, s.analyze(name, sum))
	}
}

func (s *DemoServer) writeReadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	writeMessage(w, http.StatusBadRequest, "Could not read upload")
}

// analyze builds a result from the upload digest. The first finding takes the
// digest's leading bytes so it is the one that decides the risk level.
func (s *DemoServer) analyze(name string, sum []byte) model.AnalysisResult {
	n := len(model.KnownConditions)
	start := int(sum[0]) % n
	findings := make([]model.Finding, 0, s.cfg.Findings)
	for i := 0; i < s.cfg.Findings; i++ {
		raw := binary.BigEndian.Uint16(sum[2+2*i:])
		score := math.Round(float64(raw)/math.MaxUint16*1000) / 10
		findings = append(findings, model.Finding{
			Name:  model.KnownConditions[(start+i)%n],
			Score: score,
		})
	}
	return model.AnalysisResult{
		PatientName:  patientName(name),
		AnalysisDate: s.now().Format("2006-01-02"),
		Findings:     findings,
		ImagePayload: placeholderImage,
	}
}

// patientName derives a display name from the upload file name.
func patientName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" || base == "." {
		return "Anonymous"
	}
	return base
}

func (s *DemoServer) getModeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"mode": s.currentMode()})
}

// setModeHandler takes the mode from a "mode" form value.
func (s *DemoServer) setModeHandler(w http.ResponseWriter, r *http.Request) {
	mode, err := ParseMode(r.FormValue("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "mode": mode})
}
