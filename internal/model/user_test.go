package model

import "testing"

func TestSubscriber_SearchKeys(t *testing.T) {
	s := Subscriber{
		Mode:          "",
		Districts:     []string{"Алмалинский", "almalinskij", "Медеуский", " ", "Новый Район"},
		FromOwnerOnly: true,
	}
	keys := s.SearchKeys()
	want := []SearchKey{
		{Mode: ModeRent, Rooms: 1, District: "almalinskij", FromOwnerOnly: true},
		{Mode: ModeRent, Rooms: 1, District: "medeuskij", FromOwnerOnly: true},
		{Mode: ModeRent, Rooms: 1, District: "новыйрайон", FromOwnerOnly: true},
	}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: got %v, want %v", i, keys[i], want[i])
		}
	}
}

func TestSubscriber_WantsComplex(t *testing.T) {
	l := Listing{Title: "3-комнатная квартира", ResidentialComplex: "ЖК Esentai City"}
	cases := []struct {
		name      string
		complexes []string
		want      bool
	}{
		{"no filter", nil, true},
		{"match complex", []string{"esentai city"}, true},
		{"match title", []string{"3-КОМНАТНАЯ"}, true},
		{"no match", []string{"Нурлы Тау"}, false},
		{"blank entries only", []string{" "}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Subscriber{ResidentialComplexes: tc.complexes}
			if got := s.WantsComplex(l); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTier_Priority(t *testing.T) {
	if !(TierPro.Priority() < TierStandard.Priority() && TierStandard.Priority() < TierFree.Priority()) {
		t.Fatalf("unexpected priority order")
	}
	if Tier("gold").Valid() {
		t.Fatalf("unknown tier reported valid")
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode(" Sale ") != ModeSale || ParseMode("") != ModeRent || ParseMode("lease") != ModeRent {
		t.Fatalf("unexpected mode parsing")
	}
}
