package exam

import "testing"

func TestHasFindings(t *testing.T) {
	tests := []struct {
		name string
		s    Specialty
		want bool
	}{
		{"nil interface", nil, false},
		{"nil neurological", (*Neurological)(nil), false},
		{"empty neurological", &Neurological{}, false},
		{"blank notes only", &Neurological{Notes: "   "}, false},
		{"neurological seizures", &Neurological{Seizures: true}, true},
		{"neurological gait", &Neurological{Gait: []string{"ataxia"}}, true},
		{"empty dermatological", &Dermatological{}, false},
		{"dermatological pruritus zero", &Dermatological{Pruritus: intPtr(0)}, true},
		{"empty ophthalmological", &Ophthalmological{}, false},
		{"ophthalmological one eye", &Ophthalmological{Lens: EyeFindings{OI: []string{"cataract"}}}, true},
		{"ophthalmological flag", &Ophthalmological{FluoresceinPositive: EyeFlag{OD: true}}, true},
		{"ophthalmological measure", &Ophthalmological{SchirmerTearTest: EyeMeasure{OI: floatPtr(15)}}, true},
		{"empty orthopedic", &Orthopedic{}, false},
		{"orthopedic joint", &Orthopedic{Hip: JointFindings{D: []string{"pain"}}}, true},
		{"orthopedic notes", &Orthopedic{Notes: "guarding right hind"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasFindings(tt.s); got != tt.want {
				t.Errorf("HasFindings() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGeneralFindings_SkipsEmptyRegions(t *testing.T) {
	g := &General{Heart: []string{"murmur"}, Skin: []string{}}
	f := g.Findings()
	if len(f) != 1 {
		t.Fatalf("expected 1 region, got %d: %v", len(f), f)
	}
	if f["heart"][0] != "murmur" {
		t.Errorf("expected heart murmur, got %v", f["heart"])
	}
}

func TestSitesAndJoints_Order(t *testing.T) {
	o := &Ophthalmological{}
	sites := o.Sites()
	if sites[0].Name != "eyelids" || sites[len(sites)-1].Name != "menace_response" {
		t.Errorf("unexpected site order: %v", sites)
	}

	ortho := &Orthopedic{}
	joints := ortho.Joints()
	if len(joints) != 6 || joints[0].Name != "shoulder" || joints[5].Name != "tarsus" {
		t.Errorf("unexpected joint order: %v", joints)
	}
}
