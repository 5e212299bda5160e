package vocab

var defaultStopWords = []string{
	"about", "after", "again", "against", "all", "also", "amid", "and", "any", "are",
	"because", "been", "before", "being", "between", "both", "but", "can", "could",
	"did", "does", "doing", "down", "during", "each", "few", "for", "from", "further",
	"had", "has", "have", "having", "her", "here", "hers", "him", "his", "how",
	"into", "its", "itself", "just", "more", "most", "not", "now", "off", "once",
	"only", "other", "our", "ours", "out", "over", "own", "per", "said", "same",
	"says", "she", "should", "some", "such", "than", "that", "the", "their", "theirs",
	"them", "then", "there", "these", "they", "this", "those", "through", "too",
	"under", "until", "upon", "very", "via", "was", "were", "what", "when", "where",
	"which", "while", "who", "whom", "why", "will", "with", "would", "yet", "you",
	"your", "yours",
}

// Newsroom boilerplate that outlets prepend or append to wire copy.
var defaultOperationalStopWords = []string{
	"alert", "analysis", "breaking", "developing", "exclusive", "explainer", "flash",
	"latest", "listen", "live", "newsflash", "opinion", "photos", "update", "updated",
	"updates", "urgent", "video", "watch",
}

var defaultEntities = []Entity{
	// People
	{Key: "biden", Aliases: []string{"joe biden", "biden"}},
	{Key: "trump", Aliases: []string{"donald trump", "trump"}},
	{Key: "putin", Aliases: []string{"vladimir putin", "putin"}},
	{Key: "zelensky", Aliases: []string{"zelensky", "zelenskyy", "zelenskiy"}},
	{Key: "xi_jinping", Aliases: []string{"xi jinping"}},
	{Key: "netanyahu", Aliases: []string{"netanyahu"}},
	{Key: "macron", Aliases: []string{"emmanuel macron", "macron"}},
	{Key: "modi", Aliases: []string{"narendra modi"}},
	{Key: "starmer", Aliases: []string{"keir starmer", "starmer"}},
	{Key: "erdogan", Aliases: []string{"erdogan", "erdoğan"}},
	{Key: "musk", Aliases: []string{"elon musk"}},

	// Organizations
	{Key: "nato", Aliases: []string{"nato", "north atlantic treaty organization"}},
	{Key: "united_nations", Aliases: []string{"united nations", "security council"}},
	{Key: "european_union", Aliases: []string{"european union", "european commission", "brussels"}},
	{Key: "who", Aliases: []string{"world health organization"}},
	{Key: "imf", Aliases: []string{"imf", "international monetary fund"}},
	{Key: "federal_reserve", Aliases: []string{"federal reserve"}},
	{Key: "ecb", Aliases: []string{"european central bank"}},
	{Key: "opec", Aliases: []string{"opec"}},
	{Key: "supreme_court", Aliases: []string{"supreme court"}},
	{Key: "congress", Aliases: []string{"congress", "senate", "house of representatives"}},
	{Key: "pentagon", Aliases: []string{"pentagon"}},
	{Key: "white_house", Aliases: []string{"white house"}},
	{Key: "hamas", Aliases: []string{"hamas"}},
	{Key: "hezbollah", Aliases: []string{"hezbollah"}},

	// Companies
	{Key: "apple", Aliases: []string{"apple inc", "apple"}},
	{Key: "google", Aliases: []string{"google", "alphabet"}},
	{Key: "microsoft", Aliases: []string{"microsoft"}},
	{Key: "amazon", Aliases: []string{"amazon"}},
	{Key: "tesla", Aliases: []string{"tesla"}},
	{Key: "meta", Aliases: []string{"meta platforms", "facebook", "instagram"}},
	{Key: "openai", Aliases: []string{"openai", "chatgpt"}},
	{Key: "nvidia", Aliases: []string{"nvidia"}},
	{Key: "boeing", Aliases: []string{"boeing"}},
	{Key: "tiktok", Aliases: []string{"tiktok", "bytedance"}},

	// Countries and regions
	{Key: "united_states", Aliases: []string{"united states", "u.s.", "usa", "america"}},
	{Key: "china", Aliases: []string{"china", "chinese", "beijing"}},
	{Key: "russia", Aliases: []string{"russia", "russian", "moscow", "kremlin"}},
	{Key: "united_kingdom", Aliases: []string{"united kingdom", "britain", "british", "england"}},
	{Key: "germany", Aliases: []string{"germany", "german", "berlin"}},
	{Key: "france", Aliases: []string{"france", "french", "paris"}},
	{Key: "japan", Aliases: []string{"japan", "japanese", "tokyo"}},
	{Key: "india", Aliases: []string{"india", "new delhi"}},
	{Key: "ukraine", Aliases: []string{"ukraine", "ukrainian", "kyiv", "kiev"}},
	{Key: "israel", Aliases: []string{"israel", "tel aviv", "jerusalem"}},
	{Key: "palestine", Aliases: []string{"palestin", "gaza", "west bank"}},
	{Key: "iran", Aliases: []string{"iran", "tehran"}},
	{Key: "north_korea", Aliases: []string{"north korea", "pyongyang"}},
	{Key: "south_korea", Aliases: []string{"south korea", "seoul"}},
	{Key: "taiwan", Aliases: []string{"taiwan", "taipei"}},
	{Key: "syria", Aliases: []string{"syria", "damascus"}},
	{Key: "canada", Aliases: []string{"canada", "canadian", "ottawa"}},
	{Key: "australia", Aliases: []string{"australia", "canberra"}},
	{Key: "brazil", Aliases: []string{"brazil", "brasilia"}},
	{Key: "mexico", Aliases: []string{"mexico", "mexican"}},
	{Key: "turkey", Aliases: []string{"turkey", "ankara"}},
	{Key: "saudi_arabia", Aliases: []string{"saudi arabia", "riyadh"}},
	{Key: "egypt", Aliases: []string{"egypt", "cairo"}},
	{Key: "south_africa", Aliases: []string{"south africa"}},
	{Key: "middle_east", Aliases: []string{"middle east"}},
}

// Major wire services, broadcasters and newspapers. Matched by case-insensitive containment.
var defaultVerifiedSources = []string{
	"reuters", "associated press", "apnews", "ap news", "afp", "agence france-presse",
	"bbc", "npr", "pbs", "cnn", "abc news", "cbs news", "nbc news",
	"new york times", "nytimes", "washington post", "wall street journal", "wsj",
	"the guardian", "bloomberg", "financial times", "the economist", "al jazeera",
	"politico", "axios", "deutsche welle", "france 24", "nhk", "cbc",
}
