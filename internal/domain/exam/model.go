package exam

// Exam is the structured physical exam embedded in a consultation.
type Exam struct {
	General          General           `json:"general"`
	Neurological     *Neurological     `json:"neurological,omitempty"`
	Dermatological   *Dermatological   `json:"dermatological,omitempty"`
	Ophthalmological *Ophthalmological `json:"ophthalmological,omitempty"`
	Orthopedic       *Orthopedic       `json:"orthopedic,omitempty"`
}

// General holds the vitals taken at exam time and the body-region findings.
type General struct {
	Weight             *float64 `json:"weight,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	HeartRate          *int     `json:"heart_rate,omitempty"`
	RespiratoryRate    *int     `json:"respiratory_rate,omitempty"`
	PulseRate          *int     `json:"pulse_rate,omitempty"`
	PulseQuality       string   `json:"pulse_quality,omitempty"`
	BodyConditionScore *int     `json:"body_condition_score,omitempty"`
	Hydration          string   `json:"hydration,omitempty"`

	Eyes              []string `json:"eyes,omitempty"`
	Ears              []string `json:"ears,omitempty"`
	Nose              []string `json:"nose,omitempty"`
	Mouth             []string `json:"mouth,omitempty"`
	LymphNodes        []string `json:"lymph_nodes,omitempty"`
	Heart             []string `json:"heart,omitempty"`
	Lungs             []string `json:"lungs,omitempty"`
	Abdomen           []string `json:"abdomen,omitempty"`
	Musculoskeletal   []string `json:"musculoskeletal,omitempty"`
	BasicNeurological []string `json:"basic_neurological,omitempty"`
	Skin              []string `json:"skin,omitempty"`
	Urogenital        []string `json:"urogenital,omitempty"`
	Perianal          []string `json:"perianal,omitempty"`

	Observations string `json:"observations,omitempty"`
}

// Neurological is the neurological specialty exam.
type Neurological struct {
	MentalStatus       []string `json:"mental_status,omitempty"`
	Posture            []string `json:"posture,omitempty"`
	Gait               []string `json:"gait,omitempty"`
	CranialNerves      []string `json:"cranial_nerves,omitempty"`
	PosturalReactions  []string `json:"postural_reactions,omitempty"`
	SpinalReflexes     []string `json:"spinal_reflexes,omitempty"`
	PainPerception     string   `json:"pain_perception,omitempty"`
	SpinalPain         []string `json:"spinal_pain,omitempty"`
	Seizures           bool     `json:"seizures,omitempty"`
	LesionLocalization []string `json:"lesion_localization,omitempty"`
	Notes              string   `json:"notes,omitempty"`
}

// Dermatological is the dermatological specialty exam.
type Dermatological struct {
	LesionTypes     []string `json:"lesion_types,omitempty"`
	Distribution    []string `json:"distribution,omitempty"`
	Pruritus        *int     `json:"pruritus,omitempty"`
	Alopecia        bool     `json:"alopecia,omitempty"`
	Parasites       []string `json:"parasites,omitempty"`
	DiagnosticTests []string `json:"diagnostic_tests,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// Ophthalmological is the ophthalmological specialty exam. Every field is
// paired by eye: OD is the right eye, OI the left.
type Ophthalmological struct {
	Eyelids             EyeFindings `json:"eyelids"`
	Conjunctiva         EyeFindings `json:"conjunctiva"`
	Cornea              EyeFindings `json:"cornea"`
	AnteriorChamber     EyeFindings `json:"anterior_chamber"`
	Lens                EyeFindings `json:"lens"`
	Fundus              EyeFindings `json:"fundus"`
	MenaceResponse      EyeFindings `json:"menace_response"`
	IntraocularPressure EyeMeasure  `json:"intraocular_pressure"`
	SchirmerTearTest    EyeMeasure  `json:"schirmer_tear_test"`
	FluoresceinPositive EyeFlag     `json:"fluorescein_positive"`
	Notes               string      `json:"notes,omitempty"`
}

// EyeFindings is a pair of finding sets, one per eye.
type EyeFindings struct {
	OD []string `json:"od,omitempty"`
	OI []string `json:"oi,omitempty"`
}

// EyeMeasure is a pair of numeric readings, one per eye.
type EyeMeasure struct {
	OD *float64 `json:"od,omitempty"`
	OI *float64 `json:"oi,omitempty"`
}

// EyeFlag is a pair of boolean results, one per eye.
type EyeFlag struct {
	OD bool `json:"od,omitempty"`
	OI bool `json:"oi,omitempty"`
}

// Orthopedic is the orthopedic specialty exam. Joints are paired D (right)
// and I (left).
type Orthopedic struct {
	Shoulder      JointFindings `json:"shoulder"`
	Elbow         JointFindings `json:"elbow"`
	Carpus        JointFindings `json:"carpus"`
	Hip           JointFindings `json:"hip"`
	Stifle        JointFindings `json:"stifle"`
	Tarsus        JointFindings `json:"tarsus"`
	LamenessGrade *int          `json:"lameness_grade,omitempty"`
	AffectedLimbs []string      `json:"affected_limbs,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// JointFindings is a pair of finding sets for one joint.
type JointFindings struct {
	D []string `json:"d,omitempty"`
	I []string `json:"i,omitempty"`
}

// Specialty is implemented by the four optional specialty sections.
type Specialty interface {
	HasFindings() bool
}

// SpecialtyName identifies a specialty section.
type SpecialtyName string

const (
	SpecialtyNeurological     SpecialtyName = "neurological"
	SpecialtyDermatological   SpecialtyName = "dermatological"
	SpecialtyOphthalmological SpecialtyName = "ophthalmological"
	SpecialtyOrthopedic       SpecialtyName = "orthopedic"
)

// EyeSite pairs a structure name with its per-eye findings.
type EyeSite struct {
	Name     string
	Findings EyeFindings
}

// Sites returns the paired finding sets in display order.
func (o *Ophthalmological) Sites() []EyeSite {
	return []EyeSite{
		{"eyelids", o.Eyelids},
		{"conjunctiva", o.Conjunctiva},
		{"cornea", o.Cornea},
		{"anterior_chamber", o.AnteriorChamber},
		{"lens", o.Lens},
		{"fundus", o.Fundus},
		{"menace_response", o.MenaceResponse},
	}
}

// JointSite pairs a joint name with its per-side findings.
type JointSite struct {
	Name     string
	Findings JointFindings
}

// Joints returns the paired joint findings in display order.
func (o *Orthopedic) Joints() []JointSite {
	return []JointSite{
		{"shoulder", o.Shoulder},
		{"elbow", o.Elbow},
		{"carpus", o.Carpus},
		{"hip", o.Hip},
		{"stifle", o.Stifle},
		{"tarsus", o.Tarsus},
	}
}

// Findings returns the body-region finding sets of the general exam keyed by
// region, skipping empty regions.
func (g *General) Findings() map[string][]string {
	regions := map[string][]string{
		"eyes":               g.Eyes,
		"ears":               g.Ears,
		"nose":               g.Nose,
		"mouth":              g.Mouth,
		"lymph_nodes":        g.LymphNodes,
		"heart":              g.Heart,
		"lungs":              g.Lungs,
		"abdomen":            g.Abdomen,
		"musculoskeletal":    g.Musculoskeletal,
		"basic_neurological": g.BasicNeurological,
		"skin":               g.Skin,
		"urogenital":         g.Urogenital,
		"perianal":           g.Perianal,
	}
	for k, v := range regions {
		if len(v) == 0 {
			delete(regions, k)
		}
	}
	return regions
}
