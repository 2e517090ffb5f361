package pipeline

func detailedStages() []StageSpec {
	return []StageSpec{
		{
			Name:        StageResearch,
			Agent:       "ResearchAgent",
			Title:       "MARKET RESEARCH & COMPETITIVE ANALYSIS",
			Summary:     "Market Research & Competitive Analysis",
			Deliverable: "Competitive landscape analysis",
			Role: `You are an expert market research analyst specializing in {{ .Topic }}.
Your task is to:

1. Identify 3-4 major competitors in this space
2. Summarize their key features and market positioning
3. Identify current trends in the market
4. Note any unmet market needs

Be specific with competitor names, features and the gaps you find.
Format your response as a structured analysis with clear sections.`,
			Template: `Please conduct a comprehensive market analysis for {{ .Topic }}. Focus on:

1. Current market leaders and their key features
2. Market trends and innovations
3. Unmet needs and gaps

Provide your analysis in a structured format.`,
		},
		{
			Name:        StageAnalysis,
			Agent:       "AnalysisAgent",
			Title:       "MARKET GAP ANALYSIS & OPPORTUNITIES",
			Summary:     "Market Gap & Opportunity Identification",
			Deliverable: "Three identified market opportunities",
			Role: `You are a strategic product analyst with expertise in SaaS product
development. Based on market research findings, your task is to:

1. Analyze the competitive landscape provided
2. Identify 3 key market gaps or opportunities
3. For each opportunity, explain what the gap is, why it matters, how it can
   be addressed and its potential market size or impact

Focus on opportunities that are underserved by competitors, valuable to
customers and technically feasible. Number the opportunities.`,
			Template: `Based on the following market research, identify 3 key opportunities for {{ .Topic }}:

RESEARCH FINDINGS:
{{ .Stages.research }}

Please provide detailed analysis of market gaps and opportunities.`,
			DependsOn: []string{StageResearch},
		},
		{
			Name:        StageBlueprint,
			Agent:       "BlueprintAgent",
			Title:       "PRODUCT BLUEPRINT",
			Summary:     "Product Blueprint Creation",
			Deliverable: "Product features and user journey",
			Role: `You are an experienced product designer and UX strategist. Based on the
market analysis and identified opportunities, create a product blueprint:

1. Core features (MVP): 5-7 essential features, each with a description and
   the opportunity it addresses
2. User journey: the main flow for the primary user, with key touchpoints
3. Differentiation: how the product stands out and its competitive advantages
4. Target user personas

Format the result as a comprehensive product blueprint document.`,
			Template: `Based on the market research and opportunity analysis below, create a comprehensive product blueprint for {{ .Topic }}:

MARKET RESEARCH:
{{ .Stages.research }}

OPPORTUNITY ANALYSIS:
{{ .Stages.analysis }}

Please create a detailed product blueprint with features, user journey, and differentiation.`,
			DependsOn: []string{StageResearch, StageAnalysis},
		},
		{
			Name:        StageReview,
			Agent:       "ReviewerAgent",
			Title:       "PRODUCT REVIEW & RECOMMENDATIONS",
			Summary:     "Strategic Review & Recommendations",
			Deliverable: "Strategic recommendations and next steps",
			Role: `You are an experienced product executive and business strategist. Review
the product blueprint and provide strategic recommendations:

1. Feasibility: is the feature set realistic to build, and what is missing?
2. Market viability: will this product succeed, and what are the risks?
3. Business model: pricing strategy and revenue streams
4. Implementation roadmap: phased launch and key milestones
5. Next steps: top 5 priorities and resource requirements

Provide constructive feedback and actionable recommendations.`,
			Template: `Please review the following product blueprint and provide strategic recommendations, feasibility assessment, and next steps:

PRODUCT BLUEPRINT:
{{ .Stages.blueprint }}

Provide comprehensive review with actionable recommendations.`,
			DependsOn: []string{StageBlueprint},
		},
	}
}

func briefStages() []StageSpec {
	stages := detailedStages()

	stages[0].Role = `You are a market research analyst. Give a brief analysis of 3 competitors
in {{ .Topic }}. List their key features and identify market gaps in 200 words.`
	stages[0].Template = `Analyze the current market for {{ .Topic }}.`

	stages[1].Role = `You are a product analyst. Based on market research, identify 3 key
opportunities for a {{ .Topic }} startup. For each, explain the gap and why it
matters in 150 words.`
	stages[1].Template = `Based on this research, identify 3 market opportunities:
{{ .Stages.research }}`

	stages[2].Role = `You are a product designer. Create a brief product blueprint with 5 core
features for {{ .Topic }} and a simple user journey in 200 words.`
	stages[2].Template = `Based on these opportunities, design the product:
{{ .Stages.analysis }}`
	stages[2].DependsOn = []string{StageAnalysis}

	stages[3].Role = `You are a product executive. Review the product blueprint and provide 3-4
strategic recommendations for success and implementation priorities in 200 words.`
	stages[3].Template = `Review this product blueprint and provide recommendations:
{{ .Stages.blueprint }}`

	return stages
}
