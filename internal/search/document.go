// Package search provides full-text search over the store catalog using Bleve.
// Products and stores share one index with type discrimination so a single
// query matches item names, descriptions and the store that sells them.
package search

import (
	"github.com/ecocampus/ecocampus-server/internal/domain"
)

// DocType represents the type of document in the catalog index.
type DocType string

// Document types for the search index.
const (
	DocTypeProduct DocType = "product"
	DocTypeStore   DocType = "store"
)

// SearchDocument is the unified document structure for the Bleve index.
// Store names are denormalized into product documents so "canteen" finds
// everything the canteen sells.
type SearchDocument struct {
	ID          string  `json:"id"`
	Type        DocType `json:"type"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	StoreID     string  `json:"store_id,omitempty"`
	StoreName   string  `json:"store_name,omitempty"`
	Cost        int     `json:"cost,omitempty"`
	Popularity  int     `json:"popularity,omitempty"`
	InStock     bool    `json:"in_stock"`
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *SearchDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":       d.ID,
		"type":     string(d.Type),
		"name":     d.Name,
		"in_stock": d.InStock,
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.StoreID != "" {
		m["store_id"] = d.StoreID
	}
	if d.StoreName != "" {
		m["store_name"] = d.StoreName
	}
	if d.Type == DocTypeProduct {
		m["cost"] = d.Cost
		m["popularity"] = d.Popularity
	}
	return m
}

// ProductToSearchDocument converts a product row.
func ProductToSearchDocument(p domain.Product) *SearchDocument {
	return &SearchDocument{
		ID:          p.ID,
		Type:        DocTypeProduct,
		Name:        p.Name,
		Description: p.Description,
		StoreID:     p.StoreID,
		StoreName:   p.StoreName,
		Cost:        p.EcoPointsCost,
		Popularity:  p.OrderCount,
		InStock:     p.Stock > 0,
	}
}

// StoreToSearchDocument converts a store row.
func StoreToSearchDocument(s domain.Store) *SearchDocument {
	return &SearchDocument{
		ID:        s.ID,
		Type:      DocTypeStore,
		Name:      s.Name,
		StoreID:   s.ID,
		StoreName: s.Name,
		InStock:   true,
	}
}
