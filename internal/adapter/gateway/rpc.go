package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"filedeck/internal/domain"
)

// RPCHandler handles one WebSocket RPC method call.
type RPCHandler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

type listParams struct {
	DirPath string `json:"dir_path"`
}

type previewParams struct {
	FilePath string `json:"file_path"`
}

type configGetParams struct {
	Path *string `json:"path"`
}

// rpcHandlers mirrors the REST routes as RPC methods.
func (s *Server) rpcHandlers() map[string]RPCHandler {
	return map[string]RPCHandler{
		"files.list": func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var p listParams
			if err := s.rpcDecode("list", raw, &p); err != nil {
				return nil, err
			}
			files, err := s.deps.Files.List(ctx, p.DirPath)
			if err != nil {
				return nil, err
			}
			if files == nil {
				files = []domain.FileInfo{}
			}
			return json.Marshal(files)
		},
		"files.count": func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var p listParams
			if err := s.rpcDecode("list", raw, &p); err != nil {
				return nil, err
			}
			n, err := s.deps.Files.Count(ctx, p.DirPath)
			if err != nil {
				return nil, err
			}
			return json.Marshal(countResult{Count: n})
		},
		"files.move": func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var p moveRequest
			if err := s.rpcDecode("move", raw, &p); err != nil {
				return nil, err
			}
			newPath, err := s.deps.Files.Move(ctx, p.SrcPath, p.DestDir)
			if err != nil {
				return nil, err
			}
			return json.Marshal(pathResult{Success: true, NewPath: newPath})
		},
		"files.rename": func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var p renameRequest
			if err := s.rpcDecode("rename", raw, &p); err != nil {
				return nil, err
			}
			newPath, err := s.deps.Files.Rename(ctx, p.SrcPath, p.NewName)
			if err != nil {
				return nil, err
			}
			return json.Marshal(pathResult{Success: true, NewPath: newPath})
		},
		"files.preview": func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var p previewParams
			if err := s.rpcDecode("preview", raw, &p); err != nil {
				return nil, err
			}
			preview, err := s.deps.Files.Preview(ctx, p.FilePath)
			if err != nil {
				return nil, err
			}
			return json.Marshal(preview)
		},
		"config.get": func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var p configGetParams
			if !emptyPayload(raw) {
				if err := s.rpcDecode("config_get", raw, &p); err != nil {
					return nil, err
				}
			}
			doc, err := s.deps.Settings.Get(ctx, deref(p.Path))
			if err != nil {
				return nil, err
			}
			return json.RawMessage(doc), nil
		},
		"config.set": func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var p configSetRequest
			if err := s.rpcDecode("config_set", raw, &p); err != nil {
				return nil, err
			}
			path, err := s.deps.Settings.Set(ctx, p.Config, deref(p.Path))
			if err != nil {
				return nil, err
			}
			return json.Marshal(saveResult{Success: true, Path: path})
		},
	}
}

// rpcDecode validates an RPC payload, reporting failures as
// ErrRPCInvalidPayload.
func (s *Server) rpcDecode(schema string, raw json.RawMessage, dst any) error {
	if err := s.schemas.decode(schema, raw, dst); err != nil {
		detail := err.Error()
		var de *domain.DomainError
		if errors.As(err, &de) {
			detail = de.Detail
		}
		return domain.NewDomainError("Gateway.RPC", domain.ErrRPCInvalidPayload, detail)
	}
	return nil
}

func emptyPayload(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
