package api

import (
	"encoding/json"
	"net/http"
)

func (d *Deps) handleGetCaseRoot(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	writeJSON(w, http.StatusOK, map[string]string{"caseDir": d.Config.Snapshot().CaseRoot})
}

type setCaseRequest struct {
	CaseDir string `json:"caseDir"`
}

func (d *Deps) handleSetCase(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	var req setCaseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	data, err := d.Config.SetCaseRoot(req.CaseDir)
	if err != nil {
		writeError(w, err)
		return
	}
	d.Governor.ClearAll()
	writeJSON(w, http.StatusOK, map[string]string{"caseDir": data.CaseRoot, "output": "Case root updated"})
}

func (d *Deps) handleGetDockerConfig(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	data := d.Config.Snapshot()
	writeJSON(w, http.StatusOK, map[string]string{
		"dockerImage":     data.DockerImage,
		"openfoamVersion": data.OpenFOAMVersion,
	})
}

type setDockerConfigRequest struct {
	DockerImage     string `json:"dockerImage"`
	OpenFOAMVersion string `json:"openfoamVersion"`
}

func (d *Deps) handleSetDockerConfig(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	var req setDockerConfigRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	data, err := d.Config.SetDockerConfig(req.DockerImage, req.OpenFOAMVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"dockerImage":     data.DockerImage,
		"openfoamVersion": data.OpenFOAMVersion,
	})
}
