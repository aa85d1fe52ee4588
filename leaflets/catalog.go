// Package leaflets maps medication names onto the patient information
// leaflets and pictorial guides shipped with the chart service.
package leaflets

// Files names the two PDFs kept for one medication formulation
type Files struct {
	Leaflet   string
	Pictorial string
}

type formulationFiles struct {
	form  string
	files Files
}

type keywordFiles struct {
	keyword string
	forms   []formulationFiles
}

// pdfMappings is checked in order. Keywords are matched as substrings of
// the lower-cased medication name.
var pdfMappings = []keywordFiles{
	{"paracetamol", []formulationFiles{
		{"tablet", Files{"paracetamoltabletsleaflet.pdf", "Paracetamoltabletspictorial.pdf"}},
	}},
	{"salbutamol", []formulationFiles{
		{"inhaler", Files{"Salbutamolinhalerleaflet.pdf", "Salbutamolinhalerpictorial.pdf"}},
	}},
	{"peptac", []formulationFiles{
		{"suspension", Files{"peptacliquidleaflet.pdf", "peptacliquidpictorial.pdf"}},
		{"liquid", Files{"peptacliquidleaflet.pdf", "peptacliquidpictorial.pdf"}},
	}},
	{"amlodipine", []formulationFiles{
		{"tablet", Files{"amlodipinetabletleaflet.pdf", "amlodipinetabletpictorial.pdf"}},
	}},
	{"atorvastatin", []formulationFiles{
		{"tablet", Files{"atorvastatintabletleaflet.pdf", "atorvastatintabletpictorial.pdf"}},
	}},
	{"carbomer", []formulationFiles{
		{"gel", Files{"carbomerleaflet.pdf", "carbomerpictorial.pdf"}},
	}},
	{"doxycycline", []formulationFiles{
		{"capsule", Files{"doxycyclinecapsuleleaflet.pdf", "doxycyclinecapsulepictorial.pdf"}},
	}},
	{"esomeprazole", []formulationFiles{
		{"tablet", Files{"esomeprazoletabletleaflet.pdf", "esomeprazoletabletpictorial.pdf"}},
	}},
	{"furosemide", []formulationFiles{
		{"tablet", Files{"furosemidetabletleaflet.pdf", "furosemidetabletpictorial.pdf"}},
	}},
	{"lisinopril", []formulationFiles{
		{"tablet", Files{"lisinopriltabletleaflet.pdf", "lisinopriltabletpictorial.pdf"}},
	}},
	{"metformin", []formulationFiles{
		{"m/r tablet", Files{"metforminmrtabletleaflet.pdf", "metforminmrtabletpictorial.pdf"}},
	}},
	{"mirtazapine", []formulationFiles{
		{"tablet", Files{"mirtazapinetabletleaflet.pdf", "mirtazapinetabletpictorial.pdf"}},
	}},
	{"prednisolone", []formulationFiles{
		{"tablet", Files{"prednisolonetabletleaflet.pdf", "prednisolonetabletpictorial.pdf"}},
	}},
	{"trimbow", []formulationFiles{
		{"mdi", Files{"trimbowpMDIleaflet.pdf", "trimbowpMDIpictorial.pdf"}},
	}},
	{"gtn", []formulationFiles{
		{"spray", Files{"gtnsprayleaflet.pdf", "gtnspraypictorial.pdf"}},
	}},
	{"fludrocortisone", []formulationFiles{
		{"tablet", Files{"fludrocortisonetabletleaflet.pdf", "fludrocortisonetabletpictorial.pdf"}},
	}},
	{"apixaban", []formulationFiles{
		{"tablet", Files{"apixabantabletleaflet.pdf", "apixabantabletpictorial.pdf"}},
	}},
	{"loperamide", []formulationFiles{
		{"capsule", Files{"loperamidecapsuleleaflet.pdf", "loperamidecapsulepictorial.pdf"}},
	}},
	{"amiodarone", []formulationFiles{
		// The pictorial file name is misspelt on disk
		{"tablet", Files{"amiodaronetabletleaflet.pdf", "amiodaronetabletpictroial.pdf"}},
	}},
}

type formulationName struct {
	form string
	name string
}

type keywordNames struct {
	keyword string
	forms   []formulationName
}

var formattedNames = []keywordNames{
	{"salbutamol", []formulationName{{"mdi", "Salbutamol pMDI inhaler"}, {"inhaler", "Salbutamol pMDI inhaler"}}},
	{"trimbow", []formulationName{{"pMDI", "Trimbow pMDI inhaler"}, {"inhaler", "Trimbow pMDI inhaler"}}},
	{"doxycycline", []formulationName{{"capsule", "Doxycycline capsules"}}},
	{"esomeprazole", []formulationName{{"tablet", "Esomeprazole tablets"}}},
	{"furosemide", []formulationName{{"tablet", "Furosemide tablets"}}},
	{"lisinopril", []formulationName{{"tablet", "Lisinopril tablets"}}},
	{"metformin", []formulationName{{"m/r tablet", "Metformin modified-release tablets"}}},
	{"mirtazapine", []formulationName{{"tablet", "Mirtazapine tablets"}}},
	{"prednisolone", []formulationName{{"tablet", "Prednisolone tablets"}}},
	{"paracetamol", []formulationName{{"tablet", "Paracetamol tablets"}}},
	{"peptac", []formulationName{{"suspension", "Peptac liquid"}, {"liquid", "Peptac liquid"}}},
	{"amlodipine", []formulationName{{"tablet", "Amlodipine tablets"}}},
	{"atorvastatin", []formulationName{{"tablet", "Atorvastatin tablets"}}},
	{"carbomer", []formulationName{{"gel", "Carbomer eye gel"}}},
	{"gtn", []formulationName{{"spray", "GTN spray"}}},
	{"fludrocortisone", []formulationName{{"tablet", "Fludrocortisone tablets"}}},
	{"apixaban", []formulationName{{"tablet", "Apixaban tablets"}}},
	{"loperamide", []formulationName{{"capsule", "Loperamide capsules"}}},
	{"amiodarone", []formulationName{{"tablet", "Amiodarone tablets"}}},
}

type catalogItem struct {
	name        string
	formulation string
}

// catalog lists the medications offered in the leaflet picker
var catalog = []catalogItem{
	{"Salbutamol", "pMDI inhaler"},
	{"Trimbow", "pMDI inhaler"},
	{"Doxycycline", "capsules"},
	{"Esomeprazole", "tablets"},
	{"Furosemide", "tablets"},
	{"Lisinopril", "tablets"},
	{"Metformin", "M/R tablets"},
	{"Mirtazapine", "tablets"},
	{"Prednisolone", "tablets"},
	{"Paracetamol", "tablets"},
	{"Peptac", "liquid"},
	{"Amlodipine", "tablets"},
	{"Atorvastatin", "tablets"},
	{"Carbomer", "eye gel"},
	{"GTN", "spray"},
	{"Fludrocortisone", "tablets"},
	{"Apixaban", "tablets"},
	{"Loperamide", "capsules"},
	{"Amiodarone", "tablets"},
}

type formAliases struct {
	form    string
	aliases []string
}

var formAliasTable = []formAliases{
	{"tablet", []string{"tablet", "tablets", "tabs", "tab"}},
	{"capsule", []string{"capsule", "capsules", "caps", "cap"}},
	{"inhaler", []string{"inhaler", "inhalator", "inhale", "inh"}},
	{"spray", []string{"spray", "sprays"}},
	{"liquid", []string{"liquid", "solution", "suspension", "syrup", "soln"}},
	{"gel", []string{"gel", "jelly"}},
	{"cream", []string{"cream", "crm", "ointment"}},
	{"patch", []string{"patch", "patches", "plaster"}},
}
