package labeler

import (
	"github.com/tidwall/sjson"
)

// Fixture builders for the JSON:API payloads the fake platform serves.

func donationJSON(id, paymentStatus, personID string, labelIDs ...string) string {
	json, _ := sjson.Set(`{}`, "type", "Donation")
	json, _ = sjson.Set(json, "id", id)
	if paymentStatus != "" {
		json, _ = sjson.Set(json, "attributes.payment_status", paymentStatus)
	}
	if personID != "" {
		json, _ = sjson.Set(json, "relationships.person.data.id", personID)
	}
	if len(labelIDs) > 0 {
		json, _ = sjson.SetRaw(json, "relationships.labels.data", `[]`)
		for _, labelID := range labelIDs {
			entry, _ := sjson.Set(`{}`, "id", labelID)
			json, _ = sjson.SetRaw(json, "relationships.labels.data.-1", entry)
		}
	}
	return json
}

func personJSON(id, firstName, lastName, campusID string) string {
	json, _ := sjson.Set(`{}`, "data.type", "Person")
	json, _ = sjson.Set(json, "data.id", id)
	json, _ = sjson.Set(json, "data.attributes.first_name", firstName)
	json, _ = sjson.Set(json, "data.attributes.last_name", lastName)
	if campusID != "" {
		json, _ = sjson.Set(json, "data.relationships.primary_campus.data.id", campusID)
	}
	return json
}

func labelCollectionJSON(labels map[string]string) string {
	json := `{"data":[]}`
	for id, slug := range labels {
		entry, _ := sjson.Set(`{}`, "id", id)
		entry, _ = sjson.Set(entry, "attributes.slug", slug)
		json, _ = sjson.SetRaw(json, "data.-1", entry)
	}
	return json
}

func campusCollectionJSON(campuses map[string]string) string {
	json := `{"data":[]}`
	for id, name := range campuses {
		entry, _ := sjson.Set(`{}`, "id", id)
		entry, _ = sjson.Set(entry, "attributes.name", name)
		json, _ = sjson.SetRaw(json, "data.-1", entry)
	}
	return json
}

func donationPageJSON(donations []string, nextOffset int) string {
	json := `{"data":[]}`
	for _, d := range donations {
		json, _ = sjson.SetRaw(json, "data.-1", d)
	}
	if nextOffset > 0 {
		json, _ = sjson.Set(json, "meta.next.offset", nextOffset)
	}
	return json
}
