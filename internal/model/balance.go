package model

import "time"

// PointsBalance mirrors resident_participation_stats.  CreditPoints is the
// accumulated score adjusted by award/deduction events elsewhere;
// RedeemablePoints is the spendable balance and never drops below zero.
type PointsBalance struct {
	ResidentID       int64     `json:"resident_id"`
	CreditPoints     int       `json:"credit_points"`
	RedeemablePoints int       `json:"redeemable_points"`
	UpdatedAt        time.Time `json:"updated_at"`
}
