package timeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vetehr/vetehr/internal/domain/episode"
	"github.com/vetehr/vetehr/internal/domain/exam"
	"github.com/vetehr/vetehr/internal/domain/hospitalization"
	"github.com/vetehr/vetehr/internal/domain/surgery"
	"github.com/vetehr/vetehr/internal/domain/vaccination"
)

func fromConsultation(c *episode.Consultation) Entry {
	d := ConsultationDetails{
		Diagnoses:         append([]episode.Diagnosis{}, c.Diagnoses...),
		PrescriptionItems: []episode.PrescriptionItem{},
		LabRequests:       append([]episode.LabRequest{}, c.LabRequests...),
	}
	if len(c.VitalSigns) > 0 {
		first := c.VitalSigns[0]
		for _, vs := range c.VitalSigns[1:] {
			if vs.RecordedAt.Before(first.RecordedAt) {
				first = vs
			}
		}
		d.Vitals = &first
	}
	for _, p := range c.Prescriptions {
		d.PrescriptionItems = append(d.PrescriptionItems, p.Items...)
	}
	if c.PhysicalExam != nil {
		summary, err := summarizeExam(*c.PhysicalExam)
		if err != nil {
			d.ExamError = true
			d.ExamRaw = *c.PhysicalExam
		} else {
			d.Exam = summary
		}
	}

	summary := "Consultation"
	if n := len(c.Diagnoses); n > 0 {
		summary += ": " + c.Diagnoses[0].Description
		if n > 1 {
			summary += fmt.Sprintf(" (+%d more)", n-1)
		}
	}
	return Entry{
		Timestamp: c.StartTime,
		Kind:      KindConsultation,
		RecordID:  c.ID,
		Status:    string(c.Status),
		ActorID:   c.DoctorID,
		Summary:   summary,
		Details:   d,
	}
}

func fromHospitalization(h *hospitalization.Hospitalization, monitoringLimit int) Entry {
	summary := "Hospitalized: " + h.Reason
	if h.Location != "" {
		summary += " (" + h.Location + ")"
	}
	return Entry{
		Timestamp: h.AdmittedAt,
		Kind:      KindHospitalization,
		RecordID:  h.ID,
		Status:    string(h.Status),
		ActorID:   h.AttendingID,
		Summary:   summary,
		Details: HospitalizationDetails{
			Reason:         h.Reason,
			Location:       h.Location,
			SpecialCare:    h.SpecialCare,
			Monitoring:     h.Latest(monitoringLimit),
			DischargedAt:   h.DischargedAt,
			DischargeNotes: h.DischargeNotes,
		},
	}
}

func fromSurgery(s *surgery.Surgery) Entry {
	summary := s.ProcedureName
	if s.AnesthesiaType != "" {
		summary += " under " + strings.ToLower(s.AnesthesiaType) + " anesthesia"
	}
	return Entry{
		Timestamp: s.ScheduledDate,
		Kind:      KindSurgery,
		RecordID:  s.ID,
		Status:    string(s.Status),
		ActorID:   s.SurgeonID,
		Summary:   summary,
		Details: SurgeryDetails{
			ProcedureName:   s.ProcedureName,
			AnesthesiaType:  s.AnesthesiaType,
			DurationMinutes: s.DurationMinutes,
			PreOpNotes:      s.PreOpNotes,
			PostOpNotes:     s.PostOpNotes,
			CancelReason:    s.CancelReason,
		},
	}
}

func fromVaccination(v *vaccination.Vaccination) Entry {
	return Entry{
		Timestamp: v.AdministrationDate,
		Kind:      KindVaccination,
		RecordID:  v.ID,
		Status:    string(v.Status),
		ActorID:   v.VeterinarianID,
		Summary:   "Vaccination: " + v.VaccineName,
		Details: VaccinationDetails{
			VaccineName: v.VaccineName,
			LotNumber:   v.LotNumber,
			Route:       v.Route,
			NextDoseDue: v.NextDoseDue,
		},
	}
}

// summarizeExam fails only on structural errors. Rule violations were
// reported when the document was recorded, so the normalized form is used.
func summarizeExam(raw string) (*ExamSummary, error) {
	doc, err := exam.ValidateDocument([]byte(raw))
	var verr *exam.ValidationError
	if err != nil && !errors.As(err, &verr) {
		return nil, err
	}

	g := doc.General
	out := &ExamSummary{General: GeneralSummary{
		Weight:             g.Weight,
		Temperature:        g.Temperature,
		HeartRate:          g.HeartRate,
		RespiratoryRate:    g.RespiratoryRate,
		PulseRate:          g.PulseRate,
		PulseQuality:       g.PulseQuality,
		BodyConditionScore: g.BodyConditionScore,
		Hydration:          g.Hydration,
		Observations:       g.Observations,
	}}
	if f := g.Findings(); len(f) > 0 {
		out.General.Findings = f
	}

	if exam.HasFindings(doc.Neurological) {
		out.Specialties = append(out.Specialties, neurologicalSummary(doc.Neurological))
	}
	if exam.HasFindings(doc.Dermatological) {
		out.Specialties = append(out.Specialties, dermatologicalSummary(doc.Dermatological))
	}
	if exam.HasFindings(doc.Ophthalmological) {
		out.Specialties = append(out.Specialties, ophthalmologicalSummary(doc.Ophthalmological))
	}
	if exam.HasFindings(doc.Orthopedic) {
		out.Specialties = append(out.Specialties, orthopedicSummary(doc.Orthopedic))
	}
	return out, nil
}

func neurologicalSummary(n *exam.Neurological) SpecialtySummary {
	f := findingSet{}
	f.add("mental_status", n.MentalStatus...)
	f.add("posture", n.Posture...)
	f.add("gait", n.Gait...)
	f.add("cranial_nerves", n.CranialNerves...)
	f.add("postural_reactions", n.PosturalReactions...)
	f.add("spinal_reflexes", n.SpinalReflexes...)
	f.add("pain_perception", n.PainPerception)
	f.add("spinal_pain", n.SpinalPain...)
	f.flag("seizures", n.Seizures)
	f.add("lesion_localization", n.LesionLocalization...)
	return SpecialtySummary{Name: exam.SpecialtyNeurological, Findings: f.result(), Notes: n.Notes}
}

func dermatologicalSummary(d *exam.Dermatological) SpecialtySummary {
	f := findingSet{}
	f.add("lesion_types", d.LesionTypes...)
	f.add("distribution", d.Distribution...)
	f.flag("alopecia", d.Alopecia)
	f.add("parasites", d.Parasites...)
	f.add("diagnostic_tests", d.DiagnosticTests...)
	s := SpecialtySummary{Name: exam.SpecialtyDermatological, Findings: f.result(), Notes: d.Notes}
	if d.Pruritus != nil {
		s.Scores = map[string]int{"pruritus": *d.Pruritus}
	}
	return s
}

func ophthalmologicalSummary(o *exam.Ophthalmological) SpecialtySummary {
	s := SpecialtySummary{Name: exam.SpecialtyOphthalmological, Notes: o.Notes}
	for _, site := range o.Sites() {
		if len(site.Findings.OD) == 0 && len(site.Findings.OI) == 0 {
			continue
		}
		s.Paired = append(s.Paired, PairedFinding{Site: site.Name, Right: site.Findings.OD, Left: site.Findings.OI})
	}
	if fl := o.FluoresceinPositive; fl.OD || fl.OI {
		p := PairedFinding{Site: "fluorescein"}
		if fl.OD {
			p.Right = []string{"positive"}
		}
		if fl.OI {
			p.Left = []string{"positive"}
		}
		s.Paired = append(s.Paired, p)
	}
	for _, m := range []struct {
		name string
		v    exam.EyeMeasure
	}{
		{"intraocular_pressure", o.IntraocularPressure},
		{"schirmer_tear_test", o.SchirmerTearTest},
	} {
		if m.v.OD != nil || m.v.OI != nil {
			s.Measures = append(s.Measures, PairedMeasure{Name: m.name, Right: m.v.OD, Left: m.v.OI})
		}
	}
	return s
}

func orthopedicSummary(o *exam.Orthopedic) SpecialtySummary {
	s := SpecialtySummary{Name: exam.SpecialtyOrthopedic, Notes: o.Notes}
	for _, j := range o.Joints() {
		if len(j.Findings.D) == 0 && len(j.Findings.I) == 0 {
			continue
		}
		s.Paired = append(s.Paired, PairedFinding{Site: j.Name, Right: j.Findings.D, Left: j.Findings.I})
	}
	if len(o.AffectedLimbs) > 0 {
		s.Findings = map[string][]string{"affected_limbs": o.AffectedLimbs}
	}
	if o.LamenessGrade != nil {
		s.Scores = map[string]int{"lameness_grade": *o.LamenessGrade}
	}
	return s
}

// findingSet collects non-empty values keyed by field.
type findingSet map[string][]string

func (f findingSet) add(field string, values ...string) {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			f[field] = append(f[field], v)
		}
	}
}

func (f findingSet) flag(field string, set bool) {
	if set {
		f[field] = []string{"present"}
	}
}

func (f findingSet) result() map[string][]string {
	if len(f) == 0 {
		return nil
	}
	return f
}
