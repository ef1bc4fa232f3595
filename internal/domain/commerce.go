package domain

import "time"

// Store is a campus vendor.
type Store struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

// Product is a store item priced in eco points.
type Product struct {
	ID            string  `json:"id"`
	StoreID       string  `json:"store_id"`
	StoreName     string  `json:"store_name"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	ImageURL      string  `json:"image_url,omitempty"`
	EcoPointsCost int     `json:"ecopoints_cost"`
	OriginalPrice float64 `json:"original_price"`
	Stock         int     `json:"stock"`
	OrderCount    int     `json:"order_count"`
}

// Order is a purchase made with points.
type Order struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	StoreName   string    `json:"store_name"`
	ImageURL    string    `json:"image_url,omitempty"`
	Status      string    `json:"status"`
	TicketCode  string    `json:"ticket_code"`
	PointsSpent int       `json:"points_spent"`
	CreatedAt   time.Time `json:"created_at"`
}

// Order statuses.
const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderCollected = "collected"
	OrderCancelled = "cancelled"
)

// Movie is a title shown at a campus screening.
type Movie struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Genre     string `json:"genre"`
	Language  string `json:"language"`
	PosterURL string `json:"poster_url,omitempty"`
}

// Screening is one show of a movie, priced in points.
type Screening struct {
	ID          string    `json:"id"`
	Movie       Movie     `json:"movie"`
	ShowTime    time.Time `json:"show_time"`
	Venue       string    `json:"venue"`
	PriceBronze int       `json:"price_bronze"`
	SeatsTotal  int       `json:"seats_total"`
	SeatsBooked int       `json:"seats_booked"`
}

// Booking statuses.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

// Booking is a seat reserved at a screening.
type Booking struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ScreeningID string    `json:"screening_id"`
	SeatNumber  int       `json:"seat_number"`
	Status      string    `json:"status"`
	TicketCode  string    `json:"ticket_code"`
	CreatedAt   time.Time `json:"created_at"`
	Screening   Screening `json:"screening"`
}
