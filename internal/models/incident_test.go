package models

import "testing"

func TestIncidentCategory_Valid(t *testing.T) {
	for _, c := range IncidentCategories {
		if !c.Valid() {
			t.Errorf("expected %s to be valid", c)
		}
	}
	if IncidentCategory("alien_abduction").Valid() {
		t.Error("unexpected valid category")
	}
}

func TestIncident_Position(t *testing.T) {
	lat, lng := 10.0, 20.0
	if _, ok := (Incident{Latitude: &lat}).Position(); ok {
		t.Error("incident with null longitude should have no position")
	}
	p, ok := Incident{Latitude: &lat, Longitude: &lng}.Position()
	if !ok || p.Lat != 10 || p.Lng != 20 {
		t.Errorf("unexpected position %+v ok=%v", p, ok)
	}
}
