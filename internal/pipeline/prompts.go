package pipeline

import "fmt"

// promptVersion participates in checkpoint keys so that prompt changes start
// a fresh set of generations instead of reusing stale cached output.
const promptVersion = "v1"

const systemPrompt = "You are a careful technical writer. You summarize spoken " +
	"transcripts into clear, factual prose. Never invent facts that are not in " +
	"the source text. Respond with plain prose only, no preamble and no headings."

func chunkSummaryPrompt(chunk string, budgetBytes int) string {
	return fmt.Sprintf(
		"Summarize the following transcript excerpt. Preserve the key facts, "+
			"names, and arguments. Keep the summary under %d characters.\n\n%s",
		budgetBytes, chunk)
}

func combinedNote(count int) string {
	return fmt.Sprintf("The following %d passages are sequential summaries of one talk.", count)
}

func introductionPrompt(combined string, budgetBytes int) string {
	return fmt.Sprintf(
		"Write an introduction for a report about the talk summarized below. "+
			"State what the talk covers and why it matters. Keep it under %d "+
			"characters.\n\n%s",
		budgetBytes, combined)
}

func bodyPrompt(combined string, budgetBytes int) string {
	return fmt.Sprintf(
		"Write the main body of a report about the talk summarized below. "+
			"Organize the material into coherent paragraphs that follow the "+
			"talk's structure. Keep it under %d characters.\n\n%s",
		budgetBytes, combined)
}

func conclusionPrompt(combined string, budgetBytes int) string {
	return fmt.Sprintf(
		"Write a conclusion for a report about the talk summarized below. "+
			"Restate the main takeaways. Keep it under %d characters.\n\n%s",
		budgetBytes, combined)
}
