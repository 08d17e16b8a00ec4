package server

import (
	"net/http"

	"gcs/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	def := s.engine.Definition()
	s.writeEnvelope(w, api.Info{
		Service:      def.ServiceName,
		Collection:   def.DB.Collection,
		Environments: def.Environments(),
		Multitenant:  def.DB.Multitenant,
		Attachments:  s.engine.Attachments().AttachmentFields(),
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.writeEnvelope(w, s.engine.Definition())
}
