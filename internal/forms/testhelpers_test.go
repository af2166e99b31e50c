package forms

func sampleCollection() *Collection {
	return &Collection{
		DefaultFormID: "contato",
		Forms: []FormConfiguration{
			{
				ID:          "contato",
				Name:        "Contato geral",
				AllFields:   DefaultFields(),
				LinkedPages: []string{"home"},
			},
			{
				ID:          "trabalhista",
				Name:        "Direito do trabalho",
				WebhookURL:  "https://hooks.example/trab",
				AllFields:   DefaultFields(),
				LinkedPages: []string{"trabalhista", "shared"},
			},
			{
				ID:          "familia",
				Name:        "Direito de família",
				AllFields:   DefaultFields(),
				LinkedPages: []string{"familia", "shared"},
			},
		},
	}
}
