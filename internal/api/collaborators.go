package api

// Collaborators documents the interfaces FoamCore's HTTP surface delegates
// to for functionality explicitly out of core scope: the HTML/JS UI, 3D
// visualization, case-directory templating, mesh-generation dictionary
// writers, and geometry upload storage. The core never implements these;
// it only defines the contract a real implementation must satisfy and
// calls through a Deps-supplied instance.
type Collaborators struct {
	UI          UIRenderer
	Visualizer  Visualizer
	Templater   CaseTemplater
	MeshWriter  MeshDictWriter
	Geometry    GeometryStore
}

// UIRenderer serves the HTML/JS/TS front end. path is the request path
// being served (e.g. "/" or a static asset path under it).
type UIRenderer interface {
	Render(path string) (html []byte, err error)
}

// Visualizer renders a mesh or isosurface to HTML out-of-process (e.g. a
// subprocess invocation of a visualization tool against a temp file). The
// caller is responsible for a timeout and unconditional temp-file cleanup;
// Visualizer itself does not own a goroutine or own a renderer process.
type Visualizer interface {
	Render(path string, params map[string]string) (html []byte, err error)
}

// CaseTemplater writes the default case-directory skeleton (controlDict,
// fvSchemes, fvSolution, and similar dictionaries) when a new case is
// created via POST /api/case/create.
type CaseTemplater interface {
	WriteDefaults(caseDir string) error
}

// MeshDictWriter writes mesh-generation dictionaries (blockMeshDict,
// snappyHexMeshDict) into a case's system/ directory from user-supplied
// parameters.
type MeshDictWriter interface {
	WriteBlockMeshDict(caseDir string, params map[string]interface{}) error
	WriteSnappyHexMeshDict(caseDir string, params map[string]interface{}) error
}

// GeometryStore persists an uploaded geometry file (e.g. STL) into a
// case's constant/triSurface directory.
//
// UploadGeometry must reject an archive whose decompressed size exceeds a
// configured ratio of its compressed size (a zip-bomb guard), the same
// safety property original_source/tests/security/test_zip_bomb.py
// exercises against the Python implementation — the core's documented
// interface does not silently drop it just because the storage mechanism
// itself is out of scope.
type GeometryStore interface {
	UploadGeometry(caseDir, filename string, data []byte) error
}
