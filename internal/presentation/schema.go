package presentation

// File is the presentation YAML document. Every section is optional and
// merged over the built-in defaults.
//
//	defaultColor: "#9E9E9E"
//	defaultTag: Medio Ambiente
//	categories:
//	  conflictos: "#FF4444"
//	tags:
//	  Vivienda: home
//	aliases:
//	  servicios publicos: Servicios Públicos
type File struct {
	DefaultColor string            `yaml:"defaultColor"`
	DefaultTag   string            `yaml:"defaultTag"`
	Categories   map[string]string `yaml:"categories"` // category name -> color
	Tags         map[string]string `yaml:"tags"`       // tag name -> icon
	Aliases      map[string]string `yaml:"aliases"`    // variant spelling -> tag name
}

const (
	DefaultColor = "#9E9E9E"
	DefaultTag   = "Medio Ambiente"
)

func defaults() File {
	return File{
		DefaultColor: DefaultColor,
		DefaultTag:   DefaultTag,
		Categories: map[string]string{
			"conflictos":  "#FF4444",
			"propuestas":  "#00C853",
			"iniciativas": "#FFD700",
		},
		Tags: map[string]string{
			"Medio Ambiente":      "leaf",
			"Feminismos":          "venus-mars",
			"Servicios Públicos":  "building",
			"Vivienda":            "home",
			"Urbanismo":           "city",
			"Movilidad":           "bus",
			"Cultura":             "palette",
			"Economía y empleo":   "briefcase",
			"Deporte":             "futbol",
			"Memoria democrática": "monument",
		},
		Aliases: map[string]string{
			"feminismo":           "Feminismos",
			"servicios publicos":  "Servicios Públicos",
			"memoria democratica": "Memoria democrática",
		},
	}
}
