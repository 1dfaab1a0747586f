package api

import (
	"encoding/json"
	"net/http"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/apperrors"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/container"
)

const loadTutorialScript = "load_tutorial.sh"

type loadTutorialRequest struct {
	Tutorial string `json:"tutorial"`
}

// handleLoadTutorial copies a tutorial case from the solver image's own
// tutorial tree into the configured case root. The tutorial name is
// never spliced into a shell string: it travels as load_tutorial.sh's
// single positional argument, validated the same way any other run
// command argument is.
func (d *Deps) handleLoadTutorial(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	var req loadTutorialRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Tutorial == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"output": "[FoamCore] [Error] No tutorial selected"})
		return
	}
	if err := container.ValidateCommand(req.Tutorial); err != nil {
		writeError(w, err)
		return
	}
	if d.Runner == nil {
		writeError(w, apperrors.RuntimeUnavailable(nil))
		return
	}

	cfg := d.Config.Snapshot()
	opts := container.RunOptions{
		CaseDir: cfg.CaseRoot,
		Script:  loadTutorialScript,
		Args:    []string{req.Tutorial},
	}
	if cfg.DockerRunAsUser && cfg.DockerUID != "" && cfg.DockerGID != "" {
		opts.User = cfg.DockerUID + ":" + cfg.DockerGID
	}
	exitCode, output, err := d.Runner.RunBlocking(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if exitCode != 0 {
		writeJSON(w, http.StatusOK, map[string]string{"output": "[FoamCore] [Error] " + output})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": "[FoamCore] Tutorial loaded: " + req.Tutorial + "\n" + output})
}

type caseCreateRequest struct {
	CaseName string `json:"caseName"`
}

func (d *Deps) handleCaseCreate(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	if d.Collaborators.Templater == nil {
		http.Error(w, "case templating not configured", http.StatusNotImplemented)
		return
	}
	var req caseCreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	caseDir, err := resolveWithinRoot(d.Config.Snapshot().CaseRoot, req.CaseName)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := d.Collaborators.Templater.WriteDefaults(caseDir); err != nil {
		writeError(w, apperrors.IOFailure(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"caseDir": caseDir})
}

func (d *Deps) handleGeometryUpload(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	if d.Collaborators.Geometry == nil {
		http.Error(w, "geometry storage not configured", http.StatusNotImplemented)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid upload"})
		return
	}
	caseDir, err := resolveWithinRoot(d.Config.Snapshot().CaseRoot, r.FormValue("caseDir"))
	if err != nil {
		writeError(w, err)
		return
	}

	file, header, err := r.FormFile("geometry")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing geometry file"})
		return
	}
	defer file.Close()

	data := make([]byte, 0, header.Size)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := file.Read(buf)
		data = append(data, buf[:n]...)
		if readErr != nil {
			break
		}
	}

	if err := d.Collaborators.Geometry.UploadGeometry(caseDir, header.Filename, data); err != nil {
		writeError(w, apperrors.IOFailure(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": header.Filename})
}
