package exam

import "strings"

// HasFindings reports whether a specialty section carries any content. A nil
// section has none.
func HasFindings(s Specialty) bool {
	if s == nil {
		return false
	}
	return s.HasFindings()
}

func (n *Neurological) HasFindings() bool {
	if n == nil {
		return false
	}
	return populated(n.MentalStatus, n.Posture, n.Gait, n.CranialNerves,
		n.PosturalReactions, n.SpinalReflexes, n.PainPerception, n.SpinalPain,
		n.Seizures, n.LesionLocalization, n.Notes)
}

func (d *Dermatological) HasFindings() bool {
	if d == nil {
		return false
	}
	return populated(d.LesionTypes, d.Distribution, d.Pruritus, d.Alopecia,
		d.Parasites, d.DiagnosticTests, d.Notes)
}

func (o *Ophthalmological) HasFindings() bool {
	if o == nil {
		return false
	}
	return populated(o.Eyelids, o.Conjunctiva, o.Cornea, o.AnteriorChamber,
		o.Lens, o.Fundus, o.MenaceResponse, o.IntraocularPressure,
		o.SchirmerTearTest, o.FluoresceinPositive, o.Notes)
}

func (o *Orthopedic) HasFindings() bool {
	if o == nil {
		return false
	}
	return populated(o.Shoulder, o.Elbow, o.Carpus, o.Hip, o.Stifle, o.Tarsus,
		o.LamenessGrade, o.AffectedLimbs, o.Notes)
}

// populated is true when any value is a non-empty set, a non-blank string,
// a present number or true. Laterality pairs count when either side does.
func populated(values ...interface{}) bool {
	for _, v := range values {
		switch x := v.(type) {
		case []string:
			if len(x) > 0 {
				return true
			}
		case string:
			if strings.TrimSpace(x) != "" {
				return true
			}
		case *float64:
			if x != nil {
				return true
			}
		case *int:
			if x != nil {
				return true
			}
		case bool:
			if x {
				return true
			}
		case EyeFindings:
			if populated(x.OD, x.OI) {
				return true
			}
		case EyeMeasure:
			if populated(x.OD, x.OI) {
				return true
			}
		case EyeFlag:
			if populated(x.OD, x.OI) {
				return true
			}
		case JointFindings:
			if populated(x.D, x.I) {
				return true
			}
		}
	}
	return false
}
