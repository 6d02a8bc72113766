package keyword

// DefaultGroups is used when no keyword file is present.
func DefaultGroups() []Group {
	return []Group{
		{
			ID:   "ai-core",
			Name: "AI Core",
			Keywords: []Keyword{
				{Keyword: "AI", Synonyms: []string{"인공지능", "Artificial Intelligence", "A.I."}},
				{Keyword: "LLM", Synonyms: []string{"Large Language Model", "대규모 언어 모델", "거대 언어 모델"}},
				{Keyword: "GPT", Synonyms: []string{"GPT-4", "GPT-5", "ChatGPT"}},
				{Keyword: "Claude", Synonyms: []string{"Anthropic Claude", "Claude AI"}},
				{Keyword: "Gemini", Synonyms: []string{"Google Gemini", "Gemini Pro", "Gemini Ultra"}},
			},
		},
		{
			ID:   "physical-ai",
			Name: "Physical AI",
			Keywords: []Keyword{
				{Keyword: "Physical AI", Synonyms: []string{"Embodied AI", "실체화된 AI"}},
				{Keyword: "Humanoid", Synonyms: []string{"휴머노이드", "인간형 로봇", "Humanoid Robot"}},
				{Keyword: "Auto Pilot", Synonyms: []string{"자율주행", "Autonomous Driving", "FSD", "Full Self-Driving"}},
				{Keyword: "Robotics", Synonyms: []string{"로봇공학", "로보틱스"}},
			},
		},
		{
			ID:   "ai-business",
			Name: "AI Business",
			Keywords: []Keyword{
				{Keyword: "AI Agent", Synonyms: []string{"AI 에이전트", "Autonomous Agent", "자율 에이전트"}},
				{Keyword: "Vertical AI", Synonyms: []string{"버티컬 AI", "Industry AI", "산업 특화 AI"}},
				{Keyword: "AI Automation", Synonyms: []string{"AI 자동화", "Intelligent Automation", "지능형 자동화"}},
			},
		},
		{
			ID:   "big-tech",
			Name: "Big Tech",
			Keywords: []Keyword{
				{Keyword: "OpenAI", Synonyms: []string{"오픈AI", "Open AI"}},
				{Keyword: "Google", Synonyms: []string{"구글", "Google AI", "DeepMind"}},
				{Keyword: "Meta", Synonyms: []string{"메타", "Meta AI", "Facebook AI"}},
				{Keyword: "NVIDIA", Synonyms: []string{"엔비디아", "NVIDIA AI"}},
				{Keyword: "Tesla", Synonyms: []string{"테슬라", "Tesla AI", "Tesla Bot"}},
				{Keyword: "Microsoft", Synonyms: []string{"마이크로소프트", "MS", "Microsoft AI"}},
				{Keyword: "Amazon", Synonyms: []string{"아마존", "Amazon AI", "AWS AI"}},
				{Keyword: "Apple", Synonyms: []string{"애플", "Apple AI", "Apple Intelligence"}},
			},
		},
	}
}
