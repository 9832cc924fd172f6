package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

var messages = map[string][3]string{
	// en, hi, te
	"site.name":          {"Workers' Union", "श्रमिक संघ", "కార్మిక సంఘం"},
	"page.home.title":    {"Together we are stronger", "एकजुट होकर हम मज़बूत हैं", "కలిసి ఉంటే మనం బలంగా ఉంటాం"},
	"page.home.body":     {"Join the union, keep your membership active and stay informed.", "संघ से जुड़ें, अपनी सदस्यता सक्रिय रखें और जानकारी पाते रहें।", "సంఘంలో చేరండి, మీ సభ్యత్వాన్ని కొనసాగించండి, సమాచారం పొందండి."},
	"page.about.title":   {"About the union", "संघ के बारे में", "సంఘం గురించి"},
	"page.about.body":    {"We represent workers and negotiate fair wages and safe conditions.", "हम श्रमिकों का प्रतिनिधित्व करते हैं और उचित वेतन व सुरक्षित परिस्थितियों के लिए बातचीत करते हैं।", "మేము కార్మికుల తరఫున న్యాయమైన వేతనాలు, సురక్షిత పరిస్థితుల కోసం చర్చలు జరుపుతాము."},
	"page.plans.title":   {"Membership plans", "सदस्यता योजनाएँ", "సభ్యత్వ ప్రణాళికలు"},
	"page.signin.title":  {"Sign in", "साइन इन करें", "సైన్ ఇన్ చేయండి"},
	"page.signup.title":  {"Become a member", "सदस्य बनें", "సభ్యులు అవ్వండి"},
	"page.dashboard":     {"My membership", "मेरी सदस्यता", "నా సభ్యత్వం"},
	"page.admin":         {"Administration", "प्रशासन", "నిర్వహణ"},
	"plan.monthly":       {"Monthly", "मासिक", "నెలవారీ"},
	"plan.annual":        {"Annual", "वार्षिक", "వార్షిక"},
	"status.none":        {"Not subscribed", "सदस्यता नहीं ली", "సభ్యత్వం లేదు"},
	"status.pending":     {"Payment pending", "भुगतान लंबित", "చెల్లింపు పెండింగ్‌లో ఉంది"},
	"status.active":      {"Active, %d days left", "सक्रिय, %d दिन शेष", "క్రియాశీలం, %d రోజులు మిగిలాయి"},
	"status.grace":       {"Expired on %s. Renew now to avoid a penalty.", "%s को समाप्त। जुर्माने से बचने के लिए अभी नवीनीकरण करें।", "%s న ముగిసింది. జరిమానా నివారించడానికి ఇప్పుడే పునరుద్ధరించండి."},
	"status.lapsed":      {"Lapsed. A reactivation penalty of %s applies.", "सदस्यता समाप्त। पुनः सक्रिय करने पर %s जुर्माना लगेगा।", "సభ్యత్వం రద్దైంది. పునరుద్ధరణకు %s జరిమానా వర్తిస్తుంది."},
	"payment.success":    {"Payment received. Thank you!", "भुगतान प्राप्त हुआ। धन्यवाद!", "చెల్లింపు అందింది. ధన్యవాదాలు!"},
	"payment.pending":    {"Your payment is being processed.", "आपका भुगतान प्रक्रिया में है।", "మీ చెల్లింపు ప్రాసెస్ అవుతోంది."},
	"payment.failed":     {"Payment failed. Please try again.", "भुगतान विफल रहा। कृपया पुनः प्रयास करें।", "చెల్లింపు విఫలమైంది. దయచేసి మళ్లీ ప్రయత్నించండి."},
	"mail.renewal.subj":  {"Your membership renews soon", "आपकी सदस्यता जल्द नवीनीकृत होनी है", "మీ సభ్యత్వం త్వరలో పునరుద్ధరించాలి"},
	"mail.renewal.body":  {"Dear %s, your membership (union ID %s) is due for renewal on %s.", "प्रिय %s, आपकी सदस्यता (संघ आईडी %s) का नवीनीकरण %s को देय है।", "ప్రియమైన %s, మీ సభ్యత్వం (సంఘ ఐడి %s) %s న పునరుద్ధరించాలి."},
	"mail.lapsed.subj":   {"Your membership has expired", "आपकी सदस्यता समाप्त हो गई है", "మీ సభ్యత్వం ముగిసింది"},
	"mail.lapsed.body":   {"Dear %s, your membership (union ID %s) expired on %s. Renew to stay a member.", "प्रिय %s, आपकी सदस्यता (संघ आईडी %s) %s को समाप्त हो गई। सदस्य बने रहने के लिए नवीनीकरण करें।", "ప్రియమైన %s, మీ సభ్యత్వం (సంఘ ఐడి %s) %s న ముగిసింది. సభ్యులుగా కొనసాగడానికి పునరుద్ధరించండి."},
	"mail.receipt.subj":  {"Payment receipt", "भुगतान रसीद", "చెల్లింపు రసీదు"},
	"mail.receipt.body":  {"Dear %s, we received %s. Your membership (union ID %s) is active until %s.", "प्रिय %s, हमें %s प्राप्त हुए। आपकी सदस्यता (संघ आईडी %s) %s तक सक्रिय है।", "ప్రియమైన %s, మాకు %s అందింది. మీ సభ్యత్వం (సంఘ ఐడి %s) %s వరకు క్రియాశీలంగా ఉంటుంది."},
	"sms.otp":            {"%s is your union sign-in code. It expires in 5 minutes.", "%s आपका संघ साइन-इन कोड है। यह 5 मिनट में समाप्त हो जाएगा।", "%s మీ సంఘ సైన్-ఇన్ కోడ్. ఇది 5 నిమిషాల్లో ముగుస్తుంది."},
}

var catalogue = mustBuild()

func mustBuild() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, tr := range messages {
		for i, tag := range tags {
			if err := b.SetString(tag, key, tr[i]); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Has сообщает, есть ли перевод ключа.
func Has(key string) bool {
	_, ok := messages[key]
	return ok
}
