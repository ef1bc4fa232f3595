package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ecocampus/ecocampus-server/internal/airquality"
	"github.com/ecocampus/ecocampus-server/internal/service"
)

func (s *Server) registerMovieRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "bookScreening",
		Method:      http.MethodPost,
		Path:        "/api/v1/screenings/{id}/bookings",
		Summary:     "Book a movie ticket",
		Description: "Reserves a seat and pays for it with points",
		Tags:        []string{"Movies"},
		Security:    bearer,
	}, s.handleBookScreening)
}

func (s *Server) registerChatRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "sendChatMessage",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Ask the campus assistant",
		Tags:        []string{"Chat"},
		Security:    bearer,
	}, s.handleSendChat)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAirQuality",
		Method:      http.MethodGet,
		Path:        "/api/v1/aqi",
		Summary:     "Air quality card",
		Description: "Looks up the air quality index near the given coordinates. Omit them when location access was denied.",
		Tags:        []string{"Dashboard"},
		Security:    bearer,
	}, s.handleAirQuality)
}

// TicketOutput wraps a booked ticket for Huma.
type TicketOutput struct {
	Body *service.TicketCard
}

// SendChatInput carries one user message.
type SendChatInput struct {
	Body struct {
		Message string `json:"message" doc:"Message text"`
	}
}

// ChatOutput wraps the assistant reply for Huma.
type ChatOutput struct {
	Body *service.ChatLine
}

// AirQualityInput carries optional coordinates.
type AirQualityInput struct {
	Lat string `query:"lat" doc:"Latitude"`
	Lon string `query:"lon" doc:"Longitude"`
}

// AirQualityOutput wraps the AQI card for Huma.
type AirQualityOutput struct {
	Body airquality.Card
}

func (s *Server) handleBookScreening(ctx context.Context, input *IDInput) (*TicketOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	ticket, err := s.services.Movies.Book(ctx, st, input.ID)
	if err != nil {
		return nil, err
	}
	return &TicketOutput{Body: ticket}, nil
}

func (s *Server) handleSendChat(ctx context.Context, input *SendChatInput) (*ChatOutput, error) {
	st, err := GetSession(ctx)
	if err != nil {
		return nil, err
	}
	line, err := s.services.Chat.Send(ctx, st, input.Body.Message)
	if err != nil {
		return nil, err
	}
	return &ChatOutput{Body: line}, nil
}

func (s *Server) handleAirQuality(ctx context.Context, input *AirQualityInput) (*AirQualityOutput, error) {
	if _, err := GetSession(ctx); err != nil {
		return nil, err
	}
	lat, lon := parseCoord(input.Lat), parseCoord(input.Lon)
	return &AirQualityOutput{Body: s.services.Dashboard.AirQuality(ctx, lat, lon)}, nil
}

// parseCoord returns nil for a missing or malformed coordinate.
func parseCoord(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
