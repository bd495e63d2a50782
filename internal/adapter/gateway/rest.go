package gateway

import (
	"errors"
	"io"
	"net/http"

	"filedeck/internal/domain"
)

type moveRequest struct {
	SrcPath string `json:"src_path"`
	DestDir string `json:"dest_dir"`
}

type renameRequest struct {
	SrcPath string `json:"src_path"`
	NewName string `json:"new_name"`
}

type configSetRequest struct {
	Config domain.SettingsDocument `json:"config"`
	Path   *string                 `json:"path"`
}

type pathResult struct {
	Success bool   `json:"success"`
	NewPath string `json:"new_path"`
}

type saveResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

type countResult struct {
	Count int `json:"count"`
}

func (s *Server) registerREST(mux *http.ServeMux) {
	mux.HandleFunc("GET /files", s.handleList)
	mux.HandleFunc("GET /files/count", s.handleCount)
	mux.HandleFunc("POST /files/move", s.handleMove)
	mux.HandleFunc("POST /files/rename", s.handleRename)
	mux.HandleFunc("GET /files/preview", s.handlePreview)
	mux.HandleFunc("GET /config", s.handleConfigGet)
	mux.HandleFunc("POST /config", s.handleConfigSet)
}

// requiredQuery returns the named query parameter or an ErrInvalidInput
// error when it is absent.
func requiredQuery(r *http.Request, name string) (string, error) {
	q := r.URL.Query()
	if !q.Has(name) {
		return "", domain.NewDomainError("Gateway.query", domain.ErrInvalidInput, "missing query parameter: "+name)
	}
	return q.Get(name), nil
}

// readBody reads a JSON request body up to maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.NewDomainError("Gateway.body", domain.ErrLimitReached, err.Error())
		}
		return nil, domain.NewDomainError("Gateway.body", domain.ErrInvalidInput, "read request body: "+err.Error())
	}
	return body, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	dir, err := requiredQuery(r, "dir_path")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	files, err := s.deps.Files.List(r.Context(), dir)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if files == nil {
		files = []domain.FileInfo{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	dir, err := requiredQuery(r, "dir_path")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	n, err := s.deps.Files.Count(r.Context(), dir)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, countResult{Count: n})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := s.decodeBody(w, r, "move", &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	newPath, err := s.deps.Files.Move(r.Context(), req.SrcPath, req.DestDir)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResult{Success: true, NewPath: newPath})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := s.decodeBody(w, r, "rename", &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	newPath, err := s.deps.Files.Rename(r.Context(), req.SrcPath, req.NewName)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResult{Success: true, NewPath: newPath})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	path, err := requiredQuery(r, "file_path")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	p, err := s.deps.Files.Preview(r.Context(), path)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Settings.Get(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeRaw(w, http.StatusOK, doc)
}

func (s *Server) handleConfigSet(w http.ResponseWriter, r *http.Request) {
	var req configSetRequest
	if err := s.decodeBody(w, r, "config_set", &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	path, err := s.deps.Settings.Set(r.Context(), req.Config, deref(req.Path))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResult{Success: true, Path: path})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	return s.schemas.decode(schema, body, dst)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
