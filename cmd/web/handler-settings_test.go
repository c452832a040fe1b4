package main

import (
	url2 "net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_application_settings_switch(t *testing.T) {
	upstream := newFakeUpstream(t)
	srv := startTestServer(t, os.Stdout, testLookupEnv(upstream))

	srv.SignUp(t, "watson@example.com", "elementary")
	identityID := upstream.identityID("watson@example.com")
	upstream.addCase(identityID, "case-gaslight", "The Gaslight Affair", "CAST_READY", false)
	upstream.addCase(identityID, "case-opera", "Death at the Opera", "CAST_READY", false)

	doc := srv.GetDoc(t, "/settings")
	require.Equal(t, 2, doc.Find("form[action='/settings/switch']").Length())

	doc = srv.SubmitFormIn(t, doc, "/settings/switch", url2.Values{"case_id": {"case-gaslight"}})
	require.Contains(t, doc.Text(), "(active)")
	require.Equal(t, 1, upstream.activeCases(identityID))

	// Switching again moves the single active flag to the other case.
	srv.SubmitFormIn(t, doc, "/settings/switch", url2.Values{"case_id": {"case-opera"}})
	require.Equal(t, 1, upstream.activeCases(identityID))

	doc = srv.GetDoc(t, "/")
	require.Contains(t, doc.Find("h2").Text(), "Death at the Opera")
}

func Test_application_settings_reset(t *testing.T) {
	upstream := newFakeUpstream(t)
	srv := startTestServer(t, os.Stdout, testLookupEnv(upstream))

	srv.SignUp(t, "hopkins@example.com", "black-peter")
	identityID := upstream.identityID("hopkins@example.com")
	upstream.addCase(identityID, "case-manor", "Murder at Blackwood Manor", "CAST_READY", false)

	doc := srv.GetDoc(t, "/settings")
	srv.SubmitFormIn(t, doc, "/settings/switch", url2.Values{"case_id": {"case-manor"}})

	doc = srv.SubmitForm(t, "/settings", "/settings/reset", nil)
	require.Contains(t, doc.Text(), "No active case")

	doc = srv.GetPartial(t, "/notifications")
	require.Contains(t, doc.Find(".notification").Text(), "Investigation reset")

	// The reset is local only; the case stays active server-side.
	require.Equal(t, 1, upstream.activeCases(identityID))
}

func Test_application_settings_create(t *testing.T) {
	upstream := newFakeUpstream(t)
	srv := startTestServer(t, os.Stdout, testLookupEnv(upstream))

	srv.SignUp(t, "lestrade@example.com", "scotland-yard")
	identityID := upstream.identityID("lestrade@example.com")

	srv.SubmitForm(t, "/settings", "/settings/create", url2.Values{
		"title":           {"The Missing Heir"},
		"description":     {"A locked room on the night train."},
		"character_count": {"4"},
	})
	doc := srv.GetPartial(t, "/notifications")
	require.Contains(t, doc.Find(".notification").Text(), "Case generation started")

	// Generation runs in the background against the engine.
	require.Eventually(t, func() bool {
		return upstream.casesOwned(identityID) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func Test_application_settings_create_requiresTitle(t *testing.T) {
	upstream := newFakeUpstream(t)
	srv := startTestServer(t, os.Stdout, testLookupEnv(upstream))

	srv.SignUp(t, "gregson@example.com", "study-in-scarlet")

	doc := srv.SubmitForm(t, "/settings", "/settings/create", url2.Values{"title": {""}})
	require.Contains(t, doc.Find(".field-error").Text(), "A case needs a title.")
}
