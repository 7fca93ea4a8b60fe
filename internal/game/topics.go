package game

// Categories are handed to a topic provider, which turns one into a specific word.
var Categories = []string{
	"អាហារ",       // food
	"ផ្លែឈើ",      // fruit
	"សត្វ",        // animal
	"បក្សី",       // bird
	"ត្រី",        // fish
	"ផ្កា",        // flower
	"ដើមឈើ",       // tree
	"យានជំនិះ",    // vehicle
	"កីឡា",        // sport
	"ទីកន្លែង",    // place
	"របស់របរ",     // object
	"ទន្លេ",       // river
	"ភ្នំ",        // mountain
	"សមុទ្រ",      // ocean
	"ផ្ទះ",        // house
	"សៀវភៅ",       // book
	"តន្ត្រី",     // music
	"ភោជនីយដ្ឋាន", // restaurant
	"ផ្សារ",       // market
}

// FallbackTopics is used whenever no provider is enabled or it produced nothing.
var FallbackTopics = []string{
	// food
	"សាច់អាំង", "សម្លកកូរ", "នំបញ្ចុក", "បបរ", "អាម៉ុក",
	"បាយឆា", "មីឆា", "សម្លម្ជូរ",
	// fruit
	"ស្វាយ", "ចេក", "ល្ហុង", "ម្នាស់", "ដូង", "ក្រូច", "ទុរេន", "មង្ឃុត",
	// animals
	"ខ្លា", "ដំរី", "ស្វា", "ឆ្កែ", "ឆ្មា", "គោ", "ជ្រូក", "ទា", "មាន់", "ក្របី",
	// fish and birds
	"ត្រីឆ្លាញ់", "ត្រីរ៉ស់", "ត្រីប្រា", "ក្អែក", "សត្វក្ងោក",
	// flowers and trees
	"ផ្កាឈូក", "ផ្កាម្លិះ", "ផ្កាកុលាប", "ដើមដូង", "ដើមត្នោត",
	// vehicles
	"ម៉ូតូ", "ឡាន", "ឡានក្រុង", "កង់", "ទូក", "យន្តហោះ",
	// sports
	"បាល់ទាត់", "បាល់បោះ", "កីឡាប្រដាល់", "ហែលទឹក",
	// places
	"ប្រាសាទអង្គរវត្ត", "ទន្លេមេគង្គ", "ទន្លេសាប", "ភ្នំពេញ", "ផ្សារធំថ្មី",
	// objects
	"ទូរស័ព្ទ", "កុំព្យូទ័រ", "ទូរទស្សន៍", "ទូរទឹកកក", "កាបូប", "ស្បែកជើង", "អាវ", "មួក",
}
