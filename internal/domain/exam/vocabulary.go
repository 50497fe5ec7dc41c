package exam

import (
	"sort"
	"strings"
)

// Vocabulary is a closed, ordered set of allowed finding values. The order is
// the canonical order used when a normalized set is written back.
type Vocabulary struct {
	name   string
	values []string
	index  map[string]int
}

func newVocabulary(name string, values ...string) *Vocabulary {
	v := &Vocabulary{name: name, values: values, index: make(map[string]int, len(values))}
	for i, val := range values {
		v.index[val] = i
	}
	return v
}

// Name returns the vocabulary name used in violation messages.
func (v *Vocabulary) Name() string { return v.name }

// Values returns a copy of the allowed values in canonical order.
func (v *Vocabulary) Values() []string {
	out := make([]string, len(v.values))
	copy(out, v.values)
	return out
}

// Contains reports whether value (already canonicalized) is allowed.
func (v *Vocabulary) Contains(value string) bool {
	_, ok := v.index[value]
	return ok
}

// filter keeps the known members of a canonicalized set and orders them by
// vocabulary position. It returns nil for an empty result.
func (v *Vocabulary) filter(values []string) []string {
	var out []string
	for _, val := range values {
		if v.Contains(val) {
			out = append(out, val)
		}
	}
	if len(out) == 0 {
		return nil
	}
	sort.SliceStable(out, func(i, j int) bool { return v.index[out[i]] < v.index[out[j]] })
	return out
}

// choice returns value when it is allowed, otherwise the empty string.
func (v *Vocabulary) choice(value string) string {
	if v.Contains(value) {
		return value
	}
	return ""
}

// canonical lower-cases and trims a controlled value.
func canonical(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Controlled vocabularies for the general exam.
var (
	PulseQuality = newVocabulary("pulse_quality",
		"normal", "strong", "weak", "thready", "bounding", "irregular", "absent")
	Hydration = newVocabulary("hydration",
		"normal", "mild", "moderate", "severe")

	EyesFindings = newVocabulary("eyes",
		"normal", "discharge", "conjunctivitis", "corneal_opacity", "cataract",
		"nystagmus", "anisocoria", "third_eyelid_protrusion", "uveitis")
	EarsFindings = newVocabulary("ears",
		"normal", "cerumen", "erythema", "discharge", "odor", "otitis_externa",
		"mites", "hematoma", "pain")
	NoseFindings = newVocabulary("nose",
		"normal", "serous_discharge", "mucopurulent_discharge", "epistaxis",
		"hyperkeratosis", "depigmentation", "stenotic_nares", "dry")
	MouthFindings = newVocabulary("mouth",
		"normal", "tartar", "gingivitis", "periodontal_disease", "ulcers",
		"pale_mucosa", "icteric_mucosa", "cyanotic_mucosa", "halitosis",
		"broken_teeth", "oral_mass")
	LymphNodeFindings = newVocabulary("lymph_nodes",
		"normal", "enlarged_submandibular", "enlarged_prescapular",
		"enlarged_popliteal", "generalized_lymphadenopathy", "painful")
	HeartFindings = newVocabulary("heart",
		"normal", "murmur", "arrhythmia", "tachycardia", "bradycardia",
		"muffled_sounds", "gallop_rhythm")
	LungFindings = newVocabulary("lungs",
		"normal", "crackles", "wheezes", "increased_effort", "dull_sounds",
		"cough", "tachypnea")
	AbdomenFindings = newVocabulary("abdomen",
		"normal", "pain", "distension", "organomegaly", "mass", "fluid_wave",
		"gas_distension")
	MusculoskeletalFindings = newVocabulary("musculoskeletal",
		"normal", "lameness", "muscle_atrophy", "joint_effusion", "pain",
		"reduced_range_of_motion", "fracture_suspected")
	BasicNeurologicalFindings = newVocabulary("basic_neurological",
		"normal", "ataxia", "head_tilt", "seizure_history", "paresis",
		"altered_mentation", "proprioceptive_deficit")
	SkinFindings = newVocabulary("skin",
		"normal", "alopecia", "pruritus", "erythema", "scaling", "crusts",
		"mass", "wound", "ectoparasites", "poor_coat")
	UrogenitalFindings = newVocabulary("urogenital",
		"normal", "vulvar_discharge", "preputial_discharge", "testicular_asymmetry",
		"cryptorchidism", "enlarged_bladder", "mammary_mass")
	PerianalFindings = newVocabulary("perianal",
		"normal", "anal_sac_impaction", "perianal_mass", "hernia", "fistula",
		"diarrhea_staining", "parasites")
)

// Controlled vocabularies for the neurological specialty exam.
var (
	MentalStatus = newVocabulary("mental_status",
		"alert", "depressed", "obtunded", "stuporous", "comatose", "disoriented",
		"hyperexcitable")
	Posture = newVocabulary("posture",
		"normal", "head_tilt", "head_turn", "opisthotonus", "schiff_sherrington",
		"kyphosis", "wide_based_stance")
	Gait = newVocabulary("gait",
		"normal", "ataxia", "paresis", "plegia", "circling", "hypermetria", "lameness")
	CranialNerves = newVocabulary("cranial_nerves",
		"normal", "menace_deficit", "pupillary_asymmetry", "facial_paralysis",
		"strabismus", "nystagmus", "dysphagia", "tongue_deviation")
	PosturalReactions = newVocabulary("postural_reactions",
		"normal", "proprioceptive_deficit_thoracic", "proprioceptive_deficit_pelvic",
		"hopping_deficit", "absent")
	SpinalReflexes = newVocabulary("spinal_reflexes",
		"normal", "hyporeflexia", "hyperreflexia", "crossed_extensor", "absent_panniculus")
	PainPerception = newVocabulary("pain_perception",
		"present", "decreased", "absent")
	SpinalPain = newVocabulary("spinal_pain",
		"cervical", "thoracolumbar", "lumbosacral")
	LesionLocalization = newVocabulary("lesion_localization",
		"forebrain", "brainstem", "cerebellum", "vestibular", "c1_c5", "c6_t2",
		"t3_l3", "l4_s3", "neuromuscular")
)

// Controlled vocabularies for the dermatological specialty exam.
var (
	LesionTypes = newVocabulary("lesion_types",
		"macule", "papule", "pustule", "nodule", "plaque", "vesicle", "crust",
		"scale", "erosion", "ulcer", "lichenification", "hyperpigmentation",
		"comedone", "collarette")
	LesionDistribution = newVocabulary("distribution",
		"focal", "multifocal", "generalized", "symmetrical", "facial", "pedal",
		"ventral", "dorsal", "perianal", "otic")
	Parasites = newVocabulary("parasites",
		"fleas", "ticks", "mites", "lice")
	DermDiagnosticTests = newVocabulary("diagnostic_tests",
		"skin_scraping", "cytology", "trichogram", "wood_lamp", "fungal_culture",
		"biopsy", "tape_impression")
)

// Controlled vocabularies for the ophthalmological specialty exam.
var (
	Eyelids = newVocabulary("eyelids",
		"normal", "entropion", "ectropion", "blepharitis", "chalazion",
		"distichiasis", "mass")
	Conjunctiva = newVocabulary("conjunctiva",
		"normal", "hyperemia", "chemosis", "serous_discharge",
		"mucopurulent_discharge", "follicles")
	Cornea = newVocabulary("cornea",
		"normal", "ulcer", "edema", "vascularization", "pigmentation", "opacity",
		"keratoconjunctivitis_sicca")
	AnteriorChamber = newVocabulary("anterior_chamber",
		"normal", "flare", "hyphema", "hypopyon", "shallow")
	Lens = newVocabulary("lens",
		"normal", "nuclear_sclerosis", "cataract", "luxation", "subluxation")
	Fundus = newVocabulary("fundus",
		"normal", "retinal_detachment", "hemorrhage", "hyperreflectivity", "atrophy")
	MenaceResponse = newVocabulary("menace_response",
		"present", "decreased", "absent")
)

// Controlled vocabularies for the orthopedic specialty exam.
var (
	JointFindingsVocab = newVocabulary("joint",
		"normal", "pain", "crepitus", "effusion", "instability",
		"reduced_range_of_motion", "luxation", "cranial_drawer", "muscle_atrophy")
	Limbs = newVocabulary("affected_limbs",
		"thoracic_right", "thoracic_left", "pelvic_right", "pelvic_left")
)

// vocabularies lists every controlled vocabulary. Names are unique.
var vocabularies = []*Vocabulary{
	PulseQuality, Hydration,
	EyesFindings, EarsFindings, NoseFindings, MouthFindings, LymphNodeFindings,
	HeartFindings, LungFindings, AbdomenFindings, MusculoskeletalFindings,
	BasicNeurologicalFindings, SkinFindings, UrogenitalFindings, PerianalFindings,
	MentalStatus, Posture, Gait, CranialNerves, PosturalReactions, SpinalReflexes,
	PainPerception, SpinalPain, LesionLocalization,
	LesionTypes, LesionDistribution, Parasites, DermDiagnosticTests,
	Eyelids, Conjunctiva, Cornea, AnteriorChamber, Lens, Fundus, MenaceResponse,
	JointFindingsVocab, Limbs,
}
