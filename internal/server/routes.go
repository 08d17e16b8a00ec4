package server

import (
	"net/http"

	"gcs/internal/pipeline"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and service info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /schema", s.handleSchema)

	// Files.
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("GET /deleteFile", s.handleDeleteFile)
	mux.HandleFunc("DELETE /deleteFile", s.handleDeleteFile)

	// Record operations declared by the definition.
	def := s.engine.Definition()
	for _, path := range def.Paths() {
		api := def.APIs[path]
		mux.HandleFunc(api.HTTPMethod()+" "+path, s.handleOperation(path))
	}

	return mux
}

func (s *Server) handleOperation(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := readInput(w, r)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}

		data, err := s.engine.Run(r.Context(), path, pipeline.Request{
			Env:       envParam(r),
			Principal: principalFromContext(r.Context()),
			Input:     input,
		})
		if err != nil {
			s.writeRunError(w, r, err)
			return
		}
		s.writeEnvelope(w, data)
	}
}
