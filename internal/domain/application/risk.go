package application

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// RiskFor classifies a CIBIL score into the bands shown to approvers.
func RiskFor(score int) RiskLevel {
	switch {
	case score >= 750:
		return RiskLow
	case score >= 650:
		return RiskMedium
	case score >= 550:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

func (r RiskLevel) Description() string {
	switch r {
	case RiskLow:
		return "Excellent credit score, low risk of default."
	case RiskMedium:
		return "Good credit score, moderate risk of default."
	case RiskHigh:
		return "Fair credit score, higher risk of default."
	default:
		return "Poor credit score, very high risk of default."
	}
}
