package application

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound        = errors.New("application not found")
	ErrVersionConflict = errors.New("application was modified concurrently")
	// ErrUnknownCounselor: counselorId does not reference a counselor account.
	ErrUnknownCounselor = errors.New("counselor does not exist")
)

// LoanApplication is a student loan application owned by the counselor who filed it.
// RejectionReason is set if and only if Status is rejected.
type LoanApplication struct {
	ID              string    `json:"id"`
	StudentName     string    `json:"studentName"`
	FatherName      string    `json:"fatherName"`
	MotherName      string    `json:"motherName"`
	DateOfBirth     string    `json:"dateOfBirth"`
	AadharNumber    string    `json:"aadharNumber"`
	PanCard         string    `json:"panCard"`
	CibilScore      int       `json:"cibilScore"`
	Status          Status    `json:"status"`
	CounselorID     string    `json:"counselorId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	RejectionReason *string   `json:"rejectionReason,omitempty"`
	Version         int       `json:"version"`
}

// Fields are the counselor-supplied parts of an application.
type Fields struct {
	StudentName  string `json:"studentName" binding:"required,personname"`
	FatherName   string `json:"fatherName" binding:"required,personname"`
	MotherName   string `json:"motherName" binding:"required,personname"`
	DateOfBirth  string `json:"dateOfBirth" binding:"required,dob"`
	AadharNumber string `json:"aadharNumber" binding:"required,aadhaar"`
	PanCard      string `json:"panCard" binding:"required,pan"`
	CibilScore   int    `json:"cibilScore" binding:"required,min=300,max=900"`
}

// Patch is a partial update; nil fields keep their current value.
// Status may only be set to pending (resubmission).
type Patch struct {
	StudentName  *string `json:"studentName" binding:"omitempty,personname"`
	FatherName   *string `json:"fatherName" binding:"omitempty,personname"`
	MotherName   *string `json:"motherName" binding:"omitempty,personname"`
	DateOfBirth  *string `json:"dateOfBirth" binding:"omitempty,dob"`
	AadharNumber *string `json:"aadharNumber" binding:"omitempty,aadhaar"`
	PanCard      *string `json:"panCard" binding:"omitempty,pan"`
	CibilScore   *int    `json:"cibilScore" binding:"omitempty,min=300,max=900"`
	Status       *Status `json:"status" binding:"omitempty,oneof=pending approved rejected"`
}

type ListFilter struct {
	CounselorID *string
	Statuses    []Status
	Limit       int
}

// Stats counts applications per status.
type Stats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}

func (s *Stats) Add(status Status, n int) {
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusApproved:
		s.Approved += n
	case StatusRejected:
		s.Rejected += n
	}
	s.Total += n
}

func (f Fields) Normalized() Fields {
	f.StudentName = strings.TrimSpace(f.StudentName)
	f.FatherName = strings.TrimSpace(f.FatherName)
	f.MotherName = strings.TrimSpace(f.MotherName)
	f.DateOfBirth = strings.TrimSpace(f.DateOfBirth)
	f.AadharNumber = strings.TrimSpace(f.AadharNumber)
	f.PanCard = strings.TrimSpace(f.PanCard)
	return f
}

func (a LoanApplication) Fields() Fields {
	return Fields{
		StudentName:  a.StudentName,
		FatherName:   a.FatherName,
		MotherName:   a.MotherName,
		DateOfBirth:  a.DateOfBirth,
		AadharNumber: a.AadharNumber,
		PanCard:      a.PanCard,
		CibilScore:   a.CibilScore,
	}
}

func (a LoanApplication) Risk() RiskLevel {
	return RiskFor(a.CibilScore)
}

// New builds a pending application filed by counselorID.
func New(f Fields, counselorID string, now time.Time) LoanApplication {
	f = f.Normalized()

	return LoanApplication{
		ID:           uuid.NewString(),
		StudentName:  f.StudentName,
		FatherName:   f.FatherName,
		MotherName:   f.MotherName,
		DateOfBirth:  f.DateOfBirth,
		AadharNumber: f.AadharNumber,
		PanCard:      f.PanCard,
		CibilScore:   f.CibilScore,
		Status:       StatusPending,
		CounselorID:  counselorID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
}
