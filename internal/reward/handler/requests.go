package handler

import (
	"fmt"
	"strings"

	"persona-gateway/internal/reward/service"
)

// CreateRewardRequest is the body of POST /rewards.
type CreateRewardRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	ImageURL      string `json:"imageUrl"`
	Value         string `json:"value"`
	Price         string `json:"price"`
	RequiredScore int    `json:"requiredScore"`
}

func (r *CreateRewardRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	r.Value = strings.TrimSpace(r.Value)
	r.Price = strings.TrimSpace(r.Price)
}

func (r *CreateRewardRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if r.Description == "" {
		return fmt.Errorf("description is required")
	}
	if r.RequiredScore < 0 || r.RequiredScore > 100 {
		return fmt.Errorf("requiredScore must be between 0 and 100")
	}
	return nil
}

// Params converts the wire request into service parameters.
func (r *CreateRewardRequest) Params() service.CreateParams {
	return service.CreateParams{
		Title:         r.Title,
		Description:   r.Description,
		ImageURL:      r.ImageURL,
		Value:         r.Value,
		Price:         r.Price,
		RequiredScore: r.RequiredScore,
	}
}
