package exam

import "strings"

// normalize returns a copy with text trimmed and controlled values
// canonicalized and de-duplicated. Unknown values are kept so they can be
// reported; prune drops them.
func (e *Exam) normalize() Exam {
	out := Exam{General: e.General.normalize()}
	if e.Neurological != nil {
		n := e.Neurological.normalize()
		out.Neurological = &n
	}
	if e.Dermatological != nil {
		d := e.Dermatological.normalize()
		out.Dermatological = &d
	}
	if e.Ophthalmological != nil {
		o := e.Ophthalmological.normalize()
		out.Ophthalmological = &o
	}
	if e.Orthopedic != nil {
		o := e.Orthopedic.normalize()
		out.Orthopedic = &o
	}
	return out
}

// prune drops unknown values, clears out-of-range numbers and orders every
// set by its vocabulary.
func (e Exam) prune() Exam {
	out := Exam{General: e.General.prune()}
	if e.Neurological != nil {
		n := e.Neurological.prune()
		out.Neurological = &n
	}
	if e.Dermatological != nil {
		d := e.Dermatological.prune()
		out.Dermatological = &d
	}
	if e.Ophthalmological != nil {
		o := e.Ophthalmological.prune()
		out.Ophthalmological = &o
	}
	if e.Orthopedic != nil {
		o := e.Orthopedic.prune()
		out.Orthopedic = &o
	}
	return out
}

func (g General) normalize() General {
	g.Weight = copyFloat(g.Weight)
	g.Temperature = copyFloat(g.Temperature)
	g.HeartRate = copyInt(g.HeartRate)
	g.RespiratoryRate = copyInt(g.RespiratoryRate)
	g.PulseRate = copyInt(g.PulseRate)
	g.BodyConditionScore = copyInt(g.BodyConditionScore)
	g.PulseQuality = canonical(g.PulseQuality)
	g.Hydration = canonical(g.Hydration)
	g.Eyes = normalizeSet(g.Eyes)
	g.Ears = normalizeSet(g.Ears)
	g.Nose = normalizeSet(g.Nose)
	g.Mouth = normalizeSet(g.Mouth)
	g.LymphNodes = normalizeSet(g.LymphNodes)
	g.Heart = normalizeSet(g.Heart)
	g.Lungs = normalizeSet(g.Lungs)
	g.Abdomen = normalizeSet(g.Abdomen)
	g.Musculoskeletal = normalizeSet(g.Musculoskeletal)
	g.BasicNeurological = normalizeSet(g.BasicNeurological)
	g.Skin = normalizeSet(g.Skin)
	g.Urogenital = normalizeSet(g.Urogenital)
	g.Perianal = normalizeSet(g.Perianal)
	g.Observations = strings.TrimSpace(g.Observations)
	return g
}

func (g General) prune() General {
	g.Weight = WeightRange.clampFloat(g.Weight)
	g.Temperature = TemperatureRange.clampFloat(g.Temperature)
	g.HeartRate = HeartRateRange.clampInt(g.HeartRate)
	g.RespiratoryRate = RespiratoryRateRange.clampInt(g.RespiratoryRate)
	g.PulseRate = HeartRateRange.clampInt(g.PulseRate)
	g.BodyConditionScore = BodyConditionRange.clampInt(g.BodyConditionScore)
	g.PulseQuality = PulseQuality.choice(g.PulseQuality)
	g.Hydration = Hydration.choice(g.Hydration)
	g.Eyes = EyesFindings.filter(g.Eyes)
	g.Ears = EarsFindings.filter(g.Ears)
	g.Nose = NoseFindings.filter(g.Nose)
	g.Mouth = MouthFindings.filter(g.Mouth)
	g.LymphNodes = LymphNodeFindings.filter(g.LymphNodes)
	g.Heart = HeartFindings.filter(g.Heart)
	g.Lungs = LungFindings.filter(g.Lungs)
	g.Abdomen = AbdomenFindings.filter(g.Abdomen)
	g.Musculoskeletal = MusculoskeletalFindings.filter(g.Musculoskeletal)
	g.BasicNeurological = BasicNeurologicalFindings.filter(g.BasicNeurological)
	g.Skin = SkinFindings.filter(g.Skin)
	g.Urogenital = UrogenitalFindings.filter(g.Urogenital)
	g.Perianal = PerianalFindings.filter(g.Perianal)
	return g
}

func (n Neurological) normalize() Neurological {
	n.MentalStatus = normalizeSet(n.MentalStatus)
	n.Posture = normalizeSet(n.Posture)
	n.Gait = normalizeSet(n.Gait)
	n.CranialNerves = normalizeSet(n.CranialNerves)
	n.PosturalReactions = normalizeSet(n.PosturalReactions)
	n.SpinalReflexes = normalizeSet(n.SpinalReflexes)
	n.PainPerception = canonical(n.PainPerception)
	n.SpinalPain = normalizeSet(n.SpinalPain)
	n.LesionLocalization = normalizeSet(n.LesionLocalization)
	n.Notes = strings.TrimSpace(n.Notes)
	return n
}

func (n Neurological) prune() Neurological {
	n.MentalStatus = MentalStatus.filter(n.MentalStatus)
	n.Posture = Posture.filter(n.Posture)
	n.Gait = Gait.filter(n.Gait)
	n.CranialNerves = CranialNerves.filter(n.CranialNerves)
	n.PosturalReactions = PosturalReactions.filter(n.PosturalReactions)
	n.SpinalReflexes = SpinalReflexes.filter(n.SpinalReflexes)
	n.PainPerception = PainPerception.choice(n.PainPerception)
	n.SpinalPain = SpinalPain.filter(n.SpinalPain)
	n.LesionLocalization = LesionLocalization.filter(n.LesionLocalization)
	return n
}

func (d Dermatological) normalize() Dermatological {
	d.LesionTypes = normalizeSet(d.LesionTypes)
	d.Distribution = normalizeSet(d.Distribution)
	d.Pruritus = copyInt(d.Pruritus)
	d.Parasites = normalizeSet(d.Parasites)
	d.DiagnosticTests = normalizeSet(d.DiagnosticTests)
	d.Notes = strings.TrimSpace(d.Notes)
	return d
}

func (d Dermatological) prune() Dermatological {
	d.LesionTypes = LesionTypes.filter(d.LesionTypes)
	d.Distribution = LesionDistribution.filter(d.Distribution)
	d.Pruritus = PruritusRange.clampInt(d.Pruritus)
	d.Parasites = Parasites.filter(d.Parasites)
	d.DiagnosticTests = DermDiagnosticTests.filter(d.DiagnosticTests)
	return d
}

func (o Ophthalmological) normalize() Ophthalmological {
	o.Eyelids = o.Eyelids.normalize()
	o.Conjunctiva = o.Conjunctiva.normalize()
	o.Cornea = o.Cornea.normalize()
	o.AnteriorChamber = o.AnteriorChamber.normalize()
	o.Lens = o.Lens.normalize()
	o.Fundus = o.Fundus.normalize()
	o.MenaceResponse = o.MenaceResponse.normalize()
	o.IntraocularPressure = EyeMeasure{OD: copyFloat(o.IntraocularPressure.OD), OI: copyFloat(o.IntraocularPressure.OI)}
	o.SchirmerTearTest = EyeMeasure{OD: copyFloat(o.SchirmerTearTest.OD), OI: copyFloat(o.SchirmerTearTest.OI)}
	o.Notes = strings.TrimSpace(o.Notes)
	return o
}

func (o Ophthalmological) prune() Ophthalmological {
	o.Eyelids = o.Eyelids.prune(Eyelids)
	o.Conjunctiva = o.Conjunctiva.prune(Conjunctiva)
	o.Cornea = o.Cornea.prune(Cornea)
	o.AnteriorChamber = o.AnteriorChamber.prune(AnteriorChamber)
	o.Lens = o.Lens.prune(Lens)
	o.Fundus = o.Fundus.prune(Fundus)
	o.MenaceResponse = o.MenaceResponse.prune(MenaceResponse)
	o.IntraocularPressure = EyeMeasure{
		OD: IntraocularPressureRange.clampFloat(o.IntraocularPressure.OD),
		OI: IntraocularPressureRange.clampFloat(o.IntraocularPressure.OI),
	}
	o.SchirmerTearTest = EyeMeasure{
		OD: SchirmerRange.clampFloat(o.SchirmerTearTest.OD),
		OI: SchirmerRange.clampFloat(o.SchirmerTearTest.OI),
	}
	return o
}

func (p EyeFindings) normalize() EyeFindings {
	return EyeFindings{OD: normalizeSet(p.OD), OI: normalizeSet(p.OI)}
}

func (p EyeFindings) prune(v *Vocabulary) EyeFindings {
	return EyeFindings{OD: v.filter(p.OD), OI: v.filter(p.OI)}
}

func (o Orthopedic) normalize() Orthopedic {
	o.Shoulder = o.Shoulder.normalize()
	o.Elbow = o.Elbow.normalize()
	o.Carpus = o.Carpus.normalize()
	o.Hip = o.Hip.normalize()
	o.Stifle = o.Stifle.normalize()
	o.Tarsus = o.Tarsus.normalize()
	o.LamenessGrade = copyInt(o.LamenessGrade)
	o.AffectedLimbs = normalizeSet(o.AffectedLimbs)
	o.Notes = strings.TrimSpace(o.Notes)
	return o
}

func (o Orthopedic) prune() Orthopedic {
	o.Shoulder = o.Shoulder.prune(JointFindingsVocab)
	o.Elbow = o.Elbow.prune(JointFindingsVocab)
	o.Carpus = o.Carpus.prune(JointFindingsVocab)
	o.Hip = o.Hip.prune(JointFindingsVocab)
	o.Stifle = o.Stifle.prune(JointFindingsVocab)
	o.Tarsus = o.Tarsus.prune(JointFindingsVocab)
	o.LamenessGrade = LamenessRange.clampInt(o.LamenessGrade)
	o.AffectedLimbs = Limbs.filter(o.AffectedLimbs)
	return o
}

func (p JointFindings) normalize() JointFindings {
	return JointFindings{D: normalizeSet(p.D), I: normalizeSet(p.I)}
}

func (p JointFindings) prune(v *Vocabulary) JointFindings {
	return JointFindings{D: v.filter(p.D), I: v.filter(p.I)}
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		c := canonical(v)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
