package pipeline

import "github.com/avreyes/deepgen/internal/llm"

const taskSystemPrompt = "Generate only Python code with basic types and docstrings."

// Task is one fixed code-generation step: a prompt pair and the file its
// output lands in.
type Task struct {
	Name       string
	OutputFile string
	Prompt     string
}

// Messages returns the conversation sent for this task.
func (t Task) Messages() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: taskSystemPrompt},
		{Role: llm.RoleUser, Content: t.Prompt},
	}
}

// Tasks returns the pipeline steps in execution order: the scraper skeleton,
// the data-processing helpers and the visualization stubs.
func Tasks() []Task {
	return []Task{
		{
			Name:       "scraper structure",
			OutputFile: "real_estate_structure.py",
			Prompt: `Create a Python class structure for a real estate scraper:

1. RealEstateScraper class with:
   - Search parameters (location, property type, sources)
   - Basic scraping methods
   - Error handling

Keep it simple, focus on structure.`,
		},
		{
			Name:       "data processing functions",
			OutputFile: "data_processing.py",
			Prompt: `Create these data processing functions:

def limpiar_precio(texto: str) -> float:
    '''Clean and convert price text to float'''

def calcular_m2(texto: str) -> int:
    '''Extract and convert area to integer'''

def geocodificar(direccion: str) -> tuple[float, float]:
    '''Convert address to coordinates'''`,
		},
		{
			Name:       "visualization code",
			OutputFile: "visualizations.py",
			Prompt: `Create visualization functions:

1. create_heatmap(data, location) using folium
2. plot_price_histogram(prices) using matplotlib
3. plot_scatter(x, y, data) using seaborn

Basic structure only.`,
		},
	}
}
