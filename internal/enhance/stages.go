package enhance

// Stage is one step of the prompt refinement flow.
type Stage struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Questions   []string `json:"questions"`
	Suggestions []string `json:"suggestions"`
}

// Stages is the fixed refinement sequence, in order.
var Stages = []Stage{
	{
		Key:         "concept",
		Title:       "Concept & Setting",
		Description: "Define the basic concept, genre, and setting",
		Questions: []string{
			"What's the main genre or style? (cinematic, documentary, animation, etc.)",
			"Where does this take place? (location, time period, environment)",
			"What's the overall purpose or story goal?",
		},
		Suggestions: []string{
			"Cinematic short film",
			"Documentary style",
			"Animation/CGI",
			"Music video aesthetic",
			"Commercial/advertising",
		},
	},
	{
		Key:         "mood",
		Title:       "Mood & Atmosphere",
		Description: "Set the emotional tone, lighting, and atmosphere",
		Questions: []string{
			"What emotions should viewers feel?",
			"What's the lighting style? (natural, dramatic, soft, etc.)",
			"How would you describe the overall atmosphere?",
		},
		Suggestions: []string{
			"Warm and inviting",
			"Dark and mysterious",
			"Bright and energetic",
			"Calm and serene",
			"Tense and dramatic",
		},
	},
	{
		Key:         "subjects",
		Title:       "Characters & Objects",
		Description: "Define the main subjects, their style and characteristics",
		Questions: []string{
			"Who or what are the main subjects?",
			"What's their visual style or appearance?",
			"How do they move or behave?",
		},
		Suggestions: []string{
			"Realistic human characters",
			"Stylized/artistic figures",
			"Animals or creatures",
			"Objects and products",
			"Abstract elements",
		},
	},
	{
		Key:         "visual",
		Title:       "Visual Details",
		Description: "Specify camera work, composition, and visual effects",
		Questions: []string{
			"What camera angles or movements?",
			"Any specific visual effects or transitions?",
			"What's the visual composition style?",
		},
		Suggestions: []string{
			"Static wide shots",
			"Dynamic camera movement",
			"Close-up details",
			"Aerial/drone perspective",
			"Smooth transitions",
		},
	},
	{
		Key:         "polish",
		Title:       "Final Polish",
		Description: "Refine for conciseness and cinematic language",
		Questions: []string{
			"Any specific technical requirements?",
			"Should we emphasize certain visual elements?",
			"Any final adjustments to the overall vision?",
		},
		Suggestions: []string{
			"Add technical camera terms",
			"Emphasize color palette",
			"Include timing/pacing",
			"Specify resolution/format",
			"Add artistic references",
		},
	},
}
