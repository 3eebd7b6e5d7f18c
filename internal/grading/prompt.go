package grading

// RubricVersion is stored on every graded submission so results can be
// compared against the prompt that produced them.
const RubricVersion = "art-director.v1"

const rubricPrompt = `
You are a Senior Art Director.
Analyze the attached design (image or video).

If VIDEO: Focus on flow, interaction design, animation timing, and usability.
If IMAGE: Focus on layout, typography, color, and hierarchy.

Return valid JSON only:
{
  "category": "String (e.g. 'Mobile App Interaction', 'Logo', 'Web Layout')",
  "breakdown": {
     "typography": (0-100),
     "hierarchy": (0-100),
     "color": (0-100),
     "layout": (0-100)
  },
  "score": (Average of metrics),
  "strengths": ["string", "string"],
  "weaknesses": ["string", "string"],
  "actionable_feedback": "Short summary.",
  "recommendations": [
    { "topic": "string", "advice": "string", "resource_title": "string", "resource_url": "string" }
  ]
}
`
