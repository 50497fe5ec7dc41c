package exam

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate checks doc against the controlled vocabularies and numeric bounds
// and returns the normalized document. The document is always returned when
// doc is non-nil; the error, if any, is a *ValidationError listing every
// violation. Unknown values are left out of the normalized document and
// out-of-range numbers are cleared.
func Validate(doc *Exam) (*Exam, error) {
	if doc == nil {
		return nil, &StructuralError{Err: errEmptyDocument}
	}

	normalized := doc.normalize()

	var violations []Violation
	if err := normalized.Validate(); err != nil {
		violations = collect("", err, violations)
	}

	pruned := normalized.prune()
	if len(violations) > 0 {
		sort.SliceStable(violations, func(i, j int) bool { return violations[i].Field < violations[j].Field })
		return &pruned, &ValidationError{Violations: violations}
	}
	return &pruned, nil
}

// Validate implements validation.Validatable.
func (e Exam) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.General),
		validation.Field(&e.Neurological),
		validation.Field(&e.Dermatological),
		validation.Field(&e.Ophthalmological),
		validation.Field(&e.Orthopedic),
	)
}

func (g General) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Weight, WeightRange),
		validation.Field(&g.Temperature, TemperatureRange),
		validation.Field(&g.HeartRate, HeartRateRange),
		validation.Field(&g.RespiratoryRate, RespiratoryRateRange),
		validation.Field(&g.PulseRate, HeartRateRange),
		validation.Field(&g.PulseQuality, oneOf(PulseQuality)),
		validation.Field(&g.BodyConditionScore, BodyConditionRange),
		validation.Field(&g.Hydration, oneOf(Hydration)),
		validation.Field(&g.Eyes, eachOf(EyesFindings)),
		validation.Field(&g.Ears, eachOf(EarsFindings)),
		validation.Field(&g.Nose, eachOf(NoseFindings)),
		validation.Field(&g.Mouth, eachOf(MouthFindings)),
		validation.Field(&g.LymphNodes, eachOf(LymphNodeFindings)),
		validation.Field(&g.Heart, eachOf(HeartFindings)),
		validation.Field(&g.Lungs, eachOf(LungFindings)),
		validation.Field(&g.Abdomen, eachOf(AbdomenFindings)),
		validation.Field(&g.Musculoskeletal, eachOf(MusculoskeletalFindings)),
		validation.Field(&g.BasicNeurological, eachOf(BasicNeurologicalFindings)),
		validation.Field(&g.Skin, eachOf(SkinFindings)),
		validation.Field(&g.Urogenital, eachOf(UrogenitalFindings)),
		validation.Field(&g.Perianal, eachOf(PerianalFindings)),
	)
}

func (n Neurological) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.MentalStatus, eachOf(MentalStatus)),
		validation.Field(&n.Posture, eachOf(Posture)),
		validation.Field(&n.Gait, eachOf(Gait)),
		validation.Field(&n.CranialNerves, eachOf(CranialNerves)),
		validation.Field(&n.PosturalReactions, eachOf(PosturalReactions)),
		validation.Field(&n.SpinalReflexes, eachOf(SpinalReflexes)),
		validation.Field(&n.PainPerception, oneOf(PainPerception)),
		validation.Field(&n.SpinalPain, eachOf(SpinalPain)),
		validation.Field(&n.LesionLocalization, eachOf(LesionLocalization)),
	)
}

func (d Dermatological) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.LesionTypes, eachOf(LesionTypes)),
		validation.Field(&d.Distribution, eachOf(LesionDistribution)),
		validation.Field(&d.Pruritus, PruritusRange),
		validation.Field(&d.Parasites, eachOf(Parasites)),
		validation.Field(&d.DiagnosticTests, eachOf(DermDiagnosticTests)),
	)
}

func (o Ophthalmological) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Eyelids, eyePair(Eyelids)),
		validation.Field(&o.Conjunctiva, eyePair(Conjunctiva)),
		validation.Field(&o.Cornea, eyePair(Cornea)),
		validation.Field(&o.AnteriorChamber, eyePair(AnteriorChamber)),
		validation.Field(&o.Lens, eyePair(Lens)),
		validation.Field(&o.Fundus, eyePair(Fundus)),
		validation.Field(&o.MenaceResponse, eyePair(MenaceResponse)),
		validation.Field(&o.IntraocularPressure, eyeMeasure(IntraocularPressureRange)),
		validation.Field(&o.SchirmerTearTest, eyeMeasure(SchirmerRange)),
	)
}

func (o Orthopedic) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Shoulder, jointPair(JointFindingsVocab)),
		validation.Field(&o.Elbow, jointPair(JointFindingsVocab)),
		validation.Field(&o.Carpus, jointPair(JointFindingsVocab)),
		validation.Field(&o.Hip, jointPair(JointFindingsVocab)),
		validation.Field(&o.Stifle, jointPair(JointFindingsVocab)),
		validation.Field(&o.Tarsus, jointPair(JointFindingsVocab)),
		validation.Field(&o.LamenessGrade, LamenessRange),
		validation.Field(&o.AffectedLimbs, eachOf(Limbs)),
	)
}

const (
	codeUnknownValue = "unknown_value"
	codeOutOfRange   = "out_of_range"
	codeInternal     = "internal"
)

// memberRule rejects strings that are not part of a vocabulary.
type memberRule struct {
	vocab *Vocabulary
}

func oneOf(v *Vocabulary) validation.Rule { return memberRule{vocab: v} }

func eachOf(v *Vocabulary) validation.Rule { return validation.Each(memberRule{vocab: v}) }

func (r memberRule) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok || s == "" || r.vocab.Contains(s) {
		return nil
	}
	// the message is a template rendered with params; the value stays in params
	return validation.NewError(codeUnknownValue,
		fmt.Sprintf(`{{printf "%%q" .value}} is not in the %s vocabulary`, r.vocab.Name())).
		SetParams(map[string]interface{}{"value": s})
}

// Bounds is an inclusive numeric range, optionally exclusive at the bottom.
type Bounds struct {
	Min, Max     float64
	MinExclusive bool
	Unit         string
}

// Clinically plausible bounds for numeric exam fields.
var (
	WeightRange              = Bounds{Min: 0, Max: 1000, MinExclusive: true, Unit: "kg"}
	TemperatureRange         = Bounds{Min: 30, Max: 45, Unit: "°C"}
	HeartRateRange           = Bounds{Min: 20, Max: 400, Unit: "bpm"}
	RespiratoryRateRange     = Bounds{Min: 4, Max: 200, Unit: "rpm"}
	BodyConditionRange       = Bounds{Min: 1, Max: 9}
	IntraocularPressureRange = Bounds{Min: 0, Max: 80, Unit: "mmHg"}
	SchirmerRange            = Bounds{Min: 0, Max: 40, Unit: "mm/min"}
	PruritusRange            = Bounds{Min: 0, Max: 10}
	LamenessRange            = Bounds{Min: 0, Max: 5}
)

// Contains reports whether v lies within the bounds.
func (b Bounds) Contains(v float64) bool {
	if b.MinExclusive {
		if v <= b.Min {
			return false
		}
	} else if v < b.Min {
		return false
	}
	return v <= b.Max
}

// Validate implements validation.Rule. Absent values pass; zero is checked.
func (b Bounds) Validate(value interface{}) error {
	v, ok := number(value)
	if !ok || b.Contains(v) {
		return nil
	}
	lower := "["
	if b.MinExclusive {
		lower = "("
	}
	msg := fmt.Sprintf("must be within %s%s, %s]", lower, formatNumber(b.Min), formatNumber(b.Max))
	if b.Unit != "" {
		msg += " " + b.Unit
	}
	return validation.NewError(codeOutOfRange, msg).
		SetParams(map[string]interface{}{"value": v})
}

func (b Bounds) clampFloat(p *float64) *float64 {
	if p == nil || !b.Contains(*p) {
		return nil
	}
	v := *p
	return &v
}

func (b Bounds) clampInt(p *int) *int {
	if p == nil || !b.Contains(float64(*p)) {
		return nil
	}
	v := *p
	return &v
}

func number(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case *float64:
		if v == nil {
			return 0, false
		}
		return *v, true
	case *int:
		if v == nil {
			return 0, false
		}
		return float64(*v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func eyePair(v *Vocabulary) validation.Rule {
	return validation.By(func(value interface{}) error {
		p, _ := value.(EyeFindings)
		return validation.Errors{
			"od": validation.Validate(p.OD, eachOf(v)),
			"oi": validation.Validate(p.OI, eachOf(v)),
		}.Filter()
	})
}

func eyeMeasure(b Bounds) validation.Rule {
	return validation.By(func(value interface{}) error {
		p, _ := value.(EyeMeasure)
		return validation.Errors{
			"od": validation.Validate(p.OD, b),
			"oi": validation.Validate(p.OI, b),
		}.Filter()
	})
}

func jointPair(v *Vocabulary) validation.Rule {
	return validation.By(func(value interface{}) error {
		p, _ := value.(JointFindings)
		return validation.Errors{
			"d": validation.Validate(p.D, eachOf(v)),
			"i": validation.Validate(p.I, eachOf(v)),
		}.Filter()
	})
}

// collect flattens nested ozzo errors into violations with dotted paths.
// Set members are reported by field and value, without an index.
func collect(path string, err error, out []Violation) []Violation {
	var errs validation.Errors
	if errors.As(err, &errs) {
		keys := make([]string, 0, len(errs))
		for k := range errs {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
		for _, k := range keys {
			out = collect(joinPath(path, k), errs[k], out)
		}
		return out
	}

	var verr validation.Error
	if errors.As(err, &verr) {
		return append(out, Violation{
			Field:   path,
			Code:    verr.Code(),
			Message: verr.Error(),
			Value:   verr.Params()["value"],
		})
	}

	return append(out, Violation{Field: path, Code: codeInternal, Message: err.Error()})
}

// keyLess orders set positions numerically and field names alphabetically.
func keyLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

func joinPath(path, key string) string {
	if _, err := strconv.Atoi(key); err == nil {
		return path
	}
	if path == "" {
		return key
	}
	return path + "." + key
}
