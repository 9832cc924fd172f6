package models

// Plan тарифный план членства.
type Plan struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Months int    `json:"months"`
}
