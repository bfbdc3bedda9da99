package sentiment

// valence maps lowercase words to a polarity in [-4, 4]. The list is
// curated for spoken, first-person emotional disclosure rather than general
// prose, so conversational fillers carry no weight.
var valence = map[string]float64{
	// negative: fear and worry
	"afraid": -2.0, "alarmed": -1.4, "anxious": -1.5, "anxiety": -1.7,
	"apprehensive": -1.2, "dread": -2.0, "dreading": -2.0, "fear": -2.2,
	"fearful": -2.2, "frightened": -2.2, "insecure": -1.6, "nervous": -1.3,
	"panic": -2.3, "panicking": -2.3, "paranoid": -1.8, "restless": -1.1,
	"scared": -2.0, "scary": -2.1, "tense": -1.4, "terrified": -3.0,
	"terrifying": -2.8, "uneasy": -1.6, "worried": -1.8, "worry": -1.7,
	"worrying": -1.7, "concerned": -1.0, "overwhelmed": -2.0,
	"overwhelming": -1.8, "stressed": -1.9, "stress": -1.8, "stressful": -1.9,
	"pressure": -1.0, "troubled": -1.8,

	// negative: sadness and loss
	"alone": -1.2, "broken": -2.3, "crying": -2.1, "cried": -2.0,
	"depressed": -2.6, "depressing": -2.4, "depression": -2.7, "despair": -3.0,
	"devastated": -3.1, "disappointed": -2.0, "disappointing": -2.1,
	"down": -1.0, "empty": -1.6, "exhausted": -1.7, "grief": -2.6,
	"grieving": -2.5, "heartbroken": -3.0, "hopeless": -3.0, "hurt": -2.2,
	"hurting": -2.2, "isolated": -2.0, "lonely": -2.2, "loneliness": -2.2,
	"lost": -1.3, "melancholy": -1.9, "miserable": -2.9, "miss": -1.0,
	"numb": -1.6, "sad": -2.1, "sadness": -2.2, "sorrow": -2.4,
	"suffering": -2.6, "tired": -1.2, "unhappy": -2.2, "upset": -1.9,
	"worthless": -3.0, "useless": -2.2, "failure": -2.4, "failed": -2.0,
	"failing": -2.1, "regret": -1.8, "guilty": -1.9, "ashamed": -2.1,
	"shame": -2.1, "embarrassed": -1.6, "rejected": -2.3, "abandoned": -2.6,
	"unwanted": -2.2, "unloved": -2.6, "burden": -2.1, "burnout": -2.0,
	"burned": -1.0, "struggle": -1.5, "struggling": -1.7, "suicide": -3.5,
	"suicidal": -3.5, "die": -2.9, "dead": -3.0, "death": -2.9, "kill": -3.7,

	// negative: anger and disgust
	"angry": -2.3, "annoyed": -1.6, "annoying": -1.7, "awful": -2.8,
	"bad": -2.5, "bitter": -1.8, "disgusted": -2.4, "disgusting": -2.6,
	"enraged": -3.0, "frustrated": -2.0, "frustrating": -1.9, "furious": -2.9,
	"hate": -2.7, "hated": -2.6, "horrible": -2.8, "horrified": -2.6,
	"irritated": -1.8, "livid": -2.9, "mad": -2.2, "pissed": -2.5,
	"rage": -2.7, "resent": -1.9, "revolted": -2.3, "terrible": -2.9,
	"unfair": -2.1, "worse": -2.1, "worst": -3.1, "sick": -1.8,
	"sickened": -2.4, "appalled": -2.4, "betrayed": -2.7, "cruel": -2.8,

	// negative: confusion and doubt
	"confused": -1.3, "confusing": -1.3, "doubt": -1.5, "doubtful": -1.4,
	"uncertain": -1.2, "unsure": -1.0, "helpless": -2.6, "trapped": -2.4,
	"stuck": -1.6, "problem": -1.7, "problems": -1.7, "difficult": -1.5,
	"hard": -0.4, "pain": -2.3, "painful": -2.4, "hurts": -2.1, "crisis": -2.5,

	// positive: joy and contentment
	"amazing": 2.8, "awesome": 3.1, "blessed": 2.9, "calm": 1.3,
	"cheerful": 2.5, "content": 1.5, "delighted": 2.8, "ecstatic": 3.3,
	"enjoy": 2.2, "enjoyed": 2.3, "enjoying": 2.4, "excellent": 3.2,
	"excited": 2.2, "exciting": 2.2, "fantastic": 2.6, "fine": 0.8,
	"fun": 2.3, "glad": 2.0, "good": 1.9, "grateful": 2.7, "great": 3.1,
	"happy": 2.7, "happiness": 2.6, "joy": 2.8, "joyful": 2.9,
	"lovely": 2.8, "nice": 1.8, "okay": 0.9, "ok": 0.9, "peaceful": 2.2,
	"pleased": 2.4, "proud": 2.1, "relaxed": 2.2, "relieved": 2.1,
	"relief": 2.1, "satisfied": 1.8, "thankful": 2.7, "thrilled": 3.0,
	"wonderful": 2.7, "better": 1.9, "best": 3.2, "beautiful": 2.9,

	// positive: trust, hope and connection
	"accomplished": 1.8, "achieved": 1.8, "brave": 2.4, "care": 2.2,
	"cared": 1.8, "cherish": 2.6, "comfortable": 1.5, "confident": 2.2,
	"connected": 1.5, "eager": 1.5, "encouraged": 2.0, "energized": 2.0,
	"enthusiastic": 2.5, "hope": 1.9, "hopeful": 2.3, "inspired": 2.2,
	"love": 3.2, "loved": 2.9, "loving": 2.9, "motivated": 1.9,
	"optimistic": 2.2, "progress": 1.6, "safe": 1.9, "secure": 1.4,
	"strong": 2.3, "stronger": 2.0, "success": 2.7, "successful": 2.8,
	"supported": 2.1, "supportive": 2.3, "trust": 2.3, "understood": 1.5,
	"win": 2.8, "won": 2.7, "laugh": 2.6, "laughing": 2.3, "smile": 2.2,
	"smiling": 2.3, "free": 2.3, "healthy": 1.7, "healing": 1.6, "helped": 1.7,
	"thanks": 1.9, "thank": 1.5,
}

// boosters scale the intensity of the next sentiment-bearing word. A positive
// value intensifies, a negative value dampens.
var boosters = map[string]float64{
	"absolutely": boostIncr, "amazingly": boostIncr, "awfully": boostIncr,
	"completely": boostIncr, "considerably": boostIncr, "deeply": boostIncr,
	"enormously": boostIncr, "entirely": boostIncr, "especially": boostIncr,
	"exceptionally": boostIncr, "extremely": boostIncr, "greatly": boostIncr,
	"highly": boostIncr, "hugely": boostIncr, "incredibly": boostIncr,
	"intensely": boostIncr, "most": boostIncr, "particularly": boostIncr,
	"quite": boostIncr, "really": boostIncr, "remarkably": boostIncr,
	"so": boostIncr, "super": boostIncr, "terribly": boostIncr,
	"thoroughly": boostIncr, "totally": boostIncr, "tremendously": boostIncr,
	"truly": boostIncr, "unbelievably": boostIncr, "utterly": boostIncr,
	"very": boostIncr,

	"almost": boostDecr, "barely": boostDecr, "hardly": boostDecr,
	"kinda": boostDecr, "marginally": boostDecr, "partly": boostDecr,
	"scarcely": boostDecr, "slightly": boostDecr, "somewhat": boostDecr,
	"sorta": boostDecr, "moderately": boostDecr, "reasonably": boostDecr,
}

// negations invert the polarity of sentiment words that follow within
// negationWindow tokens. Contractions ending in "n't" are recognised without
// being listed.
var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "none": {}, "neither": {}, "nor": {},
	"nobody": {}, "nothing": {}, "nowhere": {}, "cannot": {}, "without": {},
	"aint": {}, "dont": {}, "cant": {}, "wont": {}, "isnt": {}, "arent": {},
	"wasnt": {}, "werent": {}, "doesnt": {}, "didnt": {}, "couldnt": {},
	"shouldnt": {}, "wouldnt": {}, "havent": {}, "hasnt": {}, "hadnt": {},
}

// Vocabulary returns every word of the valence lexicon in no particular order.
func Vocabulary() []string {
	words := make([]string, 0, len(valence))
	for w := range valence {
		words = append(words, w)
	}
	return words
}
