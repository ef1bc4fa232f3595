package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/http/response"
)

func (s *Server) registerChallengeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "openCamera",
		Method:      http.MethodPost,
		Path:        "/api/v1/challenges/{id}/camera",
		Summary:     "Open challenge camera",
		Description: "Remembers the challenge a photo is being taken for and opens the camera dialog",
		Tags:        []string{"Challenges"},
		Security:    bearer,
	}, s.handleOpenCamera)

	// Multipart upload (chi direct, not huma).
	s.router.Post("/api/v1/challenges/{id}/submissions", s.handleSubmitPhoto)
}

func (s *Server) registerEventRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "rsvpEvent",
		Method:      http.MethodPost,
		Path:        "/api/v1/events/{id}/rsvp",
		Summary:     "Register for event",
		Tags:        []string{"Events"},
		Security:    bearer,
	}, s.handleRSVP)
}

// IDInput carries a path identifier.
type IDInput struct {
	ID string `path:"id" doc:"Resource ID"`
}

func (s *Server) handleOpenCamera(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	s.services.Challenges.OpenCamera(st, input.ID)
	return &MessageOutput{Body: MessageResponse{Message: "Camera ready"}}, nil
}

// handleSubmitPhoto accepts a multipart form with the photo in the "photo" field.
func (s *Server) handleSubmitPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := GetSession(ctx)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		response.HandleError(w, domainerrors.Validation("Photo is too large or the form is malformed."), s.logger)
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		response.HandleError(w, domainerrors.Validation("No photo uploaded. Use the 'photo' form field."), s.logger)
		return
	}
	defer file.Close()

	card, err := s.services.Challenges.SubmitPhoto(ctx, st, chi.URLParam(r, "id"), file)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, card, s.logger)
}

func (s *Server) handleRSVP(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Events.RSVP(ctx, st, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "You have successfully registered!"}}, nil
}
