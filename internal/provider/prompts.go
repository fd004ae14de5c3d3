package provider

// comparePrompt instructs the model to score semantic similarity of two texts.
const comparePrompt = `You are an expert at detecting near-duplicate content, including paraphrased and translated copies.

Your task:
1. Compare the two texts for semantic similarity, not surface wording
2. Score similarity from 0 (unrelated) to 1 (same content)
3. List the segments of text A that closely match text B
4. Assign a confidence score (0-1) for your assessment

Respond with a JSON object:
{
  "similarity": 0.0-1.0,
  "confidence": 0.0-1.0,
  "matched_segments": ["segment", ...],
  "analysis": "Brief explanation of the overlap"
}

Only respond with the JSON object, no other text.`

// translatePromptFmt instructs the model to translate into the target
// language; the single %s is the BCP-47 target.
const translatePromptFmt = `You are a professional translator.

Your task:
1. Detect the language of the input text (BCP-47 code)
2. Translate it into %s, preserving meaning and tone
3. Assign a confidence score (0-1) for the translation quality

Respond with a JSON object:
{
  "translated_text": "the translation",
  "detected_language": "xx",
  "confidence": 0.0-1.0
}

Only respond with the JSON object, no other text.`
