package types

// ScenesBootstrapPrompt asks the model to break a script into scenes.
// Format args: group factor, language.
var ScenesBootstrapPrompt = `You are a video director preparing a narrated video.
Split the script you are given into scenes. Group scenes that tell the same story
under one story number. Give every scene an integer "id" equal to
story_number * %d + position_in_story, starting at 1 for both.

Return a JSON array only. Each element has:
  "id", "content" (narration text in %s), "subject", "visual_start", "visual_end",
  "era_time", "environment", "cinematography", "sound_effect", "keywords",
  "speaker", "speaker_action", "mood".
`

// TitleChoicesPrompt asks for candidate titles and tags. Format args: language.
var TitleChoicesPrompt = `You write titles for online videos.
Read the narration you are given and propose 5 short titles and 10 tags in %s.
Return a JSON object only: {"titles": [...], "tags": [...]}.
`
