package daehwa

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/courtrush/courtrush/pkg/facility"
)

var ErrFormNotFound = errors.New("form not found")

// ParseSlots lists the free slots of a reservation page. A row counts when
// it holds an enabled slot checkbox and is not marked as scheduled.
func ParseSlots(page string) ([]facility.Slot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	var slots []facility.Slot
	seen := make(map[string]bool)
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		box := row.Find(`input[name="rent_chk[]"]`).First()
		if box.Length() == 0 {
			return
		}
		if _, disabled := box.Attr("disabled"); disabled {
			return
		}
		if strings.Contains(row.Text(), ScheduledMarker) {
			return
		}
		value, _ := box.Attr("value")
		slot, ok := facility.SlotFromToken(value)
		if !ok || seen[value] {
			return
		}
		seen[value] = true
		slots = append(slots, slot)
	})
	return slots, nil
}

func findForm(page, name string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	form := doc.Find(fmt.Sprintf(`form[name="%s"]`, name)).First()
	if form.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFormNotFound, name)
	}
	return form, nil
}

// BuildApplyForm collects the booking form of a reservation page (every
// input plus the selected option of each select) and points it at the
// chosen court and slot.
func BuildApplyForm(page, courtCode, token string) (*facility.Form, error) {
	formSel, err := findForm(page, DocumentFormName)
	if err != nil {
		return nil, err
	}

	form := facility.NewForm()
	formSel.Find("input").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if name == "" {
			return
		}
		value, _ := s.Attr("value")
		form.Set(name, value)
	})
	formSel.Find("select").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if name == "" {
			return
		}
		selected := s.Find("option[selected]").First()
		if selected.Length() == 0 {
			return
		}
		value, _ := selected.Attr("value")
		form.Set(name, value)
	})

	form.Set("place_opt", courtCode)
	form.Set(SlotFieldName, token)
	form.Set("use_time", DurationUnit)
	return form, nil
}

// BuildFinalForm merges the application form returned by the intermediate
// step into form and adds the fields the site's own script would add.
// The slot token is written back verbatim: the site rejects a rebuilt one
// as a non-existent time record.
func BuildFinalForm(form *facility.Form, applyPage, token string) (*facility.Form, error) {
	if len(token) < 8 {
		return nil, fmt.Errorf("slot token %q too short", token)
	}
	formSel, err := findForm(applyPage, UseFormName)
	if err != nil {
		return nil, err
	}

	formSel.Find("input, textarea").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if name == "" {
			return
		}
		var value string
		if s.Is("textarea") {
			value = s.Text()
		} else {
			value, _ = s.Attr("value")
		}
		form.Merge(name, value)
	})

	form.Set("regno", PlaceholderRegNo)
	form.SetDefault("com_nm", DefaultOrganization)
	form.Set("apply_chk2", "1")
	form.Set("apply_chk", "1")
	form.Set("stime", token[:2])
	form.Set("etime", token[4:6])
	form.Set("rent_stime", token[:4])
	form.Set("rent_etime", token[4:8])
	form.Set("rent_p_stime", "")
	form.Set("rent_p_etime", "")
	form.Set(SlotFieldName, token)
	return form, nil
}
