package location

type place struct {
	state    string
	district string
}

// areaCodes maps STD codes (without the trunk 0) to the city they serve.
// Codes are matched longest first, so a 4 digit code never shadows a shorter
// one and no code is listed twice.
var areaCodes = map[string]place{
	// metros
	"11": {"Delhi", "New Delhi"},
	"22": {"Maharashtra", "Mumbai"},
	"33": {"West Bengal", "Kolkata"},
	"44": {"Tamil Nadu", "Chennai"},
	"80": {"Karnataka", "Bangalore"},
	"40": {"Telangana", "Hyderabad"},
	"20": {"Maharashtra", "Pune"},
	"79": {"Gujarat", "Ahmedabad"},

	// north
	"120":  {"Uttar Pradesh", "Noida"},
	"124":  {"Haryana", "Gurgaon"},
	"129":  {"Haryana", "Faridabad"},
	"180":  {"Haryana", "Panipat"},
	"184":  {"Haryana", "Karnal"},
	"141":  {"Rajasthan", "Jaipur"},
	"291":  {"Rajasthan", "Jodhpur"},
	"294":  {"Rajasthan", "Udaipur"},
	"744":  {"Rajasthan", "Kota"},
	"161":  {"Punjab", "Ludhiana"},
	"172":  {"Punjab", "Chandigarh"},
	"181":  {"Punjab", "Jalandhar"},
	"183":  {"Punjab", "Amritsar"},
	"177":  {"Himachal Pradesh", "Shimla"},
	"1892": {"Himachal Pradesh", "Dharamshala"},
	"1902": {"Himachal Pradesh", "Manali"},
	"1792": {"Himachal Pradesh", "Solan"},
	"194":  {"Jammu And Kashmir", "Srinagar"},
	"191":  {"Jammu And Kashmir", "Jammu"},
	"135":  {"Uttarakhand", "Dehradun"},
	"1334": {"Uttarakhand", "Haridwar"},
	"1332": {"Uttarakhand", "Roorkee"},
	"5946": {"Uttarakhand", "Haldwani"},
	"522":  {"Uttar Pradesh", "Lucknow"},
	"512":  {"Uttar Pradesh", "Kanpur"},
	"542":  {"Uttar Pradesh", "Varanasi"},
	"562":  {"Uttar Pradesh", "Agra"},

	// west
	"261": {"Gujarat", "Surat"},
	"265": {"Gujarat", "Vadodara"},
	"281": {"Gujarat", "Rajkot"},
	"278": {"Gujarat", "Bhavnagar"},
	"253": {"Maharashtra", "Nashik"},
	"712": {"Maharashtra", "Nagpur"},
	"832": {"Goa", "Panaji"},

	// central
	"755":  {"Madhya Pradesh", "Bhopal"},
	"731":  {"Madhya Pradesh", "Indore"},
	"751":  {"Madhya Pradesh", "Gwalior"},
	"761":  {"Madhya Pradesh", "Jabalpur"},
	"771":  {"Chhattisgarh", "Raipur"},
	"7752": {"Chhattisgarh", "Bilaspur"},
	"788":  {"Chhattisgarh", "Durg"},
	"7744": {"Chhattisgarh", "Rajnandgaon"},

	// east
	"612":  {"Bihar", "Patna"},
	"631":  {"Bihar", "Gaya"},
	"641":  {"Bihar", "Bhagalpur"},
	"621":  {"Bihar", "Muzaffarpur"},
	"651":  {"Jharkhand", "Ranchi"},
	"657":  {"Jharkhand", "Jamshedpur"},
	"326":  {"Jharkhand", "Dhanbad"},
	"6542": {"Jharkhand", "Bokaro"},
	"674":  {"Odisha", "Bhubaneswar"},
	"671":  {"Odisha", "Cuttack"},
	"661":  {"Odisha", "Rourkela"},
	"680":  {"Odisha", "Berhampur"},

	// north east
	"361":  {"Assam", "Guwahati"},
	"3842": {"Assam", "Silchar"},
	"373":  {"Assam", "Dibrugarh"},
	"376":  {"Assam", "Jorhat"},
	"3712": {"Assam", "Tezpur"},
	"364":  {"Meghalaya", "Shillong"},
	"381":  {"Tripura", "Agartala"},
	"385":  {"Manipur", "Imphal"},
	"370":  {"Nagaland", "Kohima"},
	"389":  {"Mizoram", "Aizawl"},
	"360":  {"Arunachal Pradesh", "Itanagar"},
	"3592": {"Sikkim", "Gangtok"},

	// south
	"471":  {"Kerala", "Thiruvananthapuram"},
	"484":  {"Kerala", "Kochi"},
	"495":  {"Kerala", "Kozhikode"},
	"487":  {"Kerala", "Thrissur"},
	"821":  {"Karnataka", "Mysore"},
	"836":  {"Karnataka", "Hubli"},
	"824":  {"Karnataka", "Mangalore"},
	"422":  {"Tamil Nadu", "Coimbatore"},
	"452":  {"Tamil Nadu", "Madurai"},
	"431":  {"Tamil Nadu", "Tiruchirapalli"},
	"891":  {"Andhra Pradesh", "Visakhapatnam"},
	"866":  {"Andhra Pradesh", "Vijayawada"},
	"863":  {"Andhra Pradesh", "Guntur"},
	"877":  {"Andhra Pradesh", "Tirupati"},
	"870":  {"Telangana", "Warangal"},
	"8462": {"Telangana", "Nizamabad"},
	"8742": {"Telangana", "Khammam"},
}

// stateDistricts is the keyword table for free text addresses. Order matters:
// the first state whose name appears in the text wins.
var stateDistricts = []struct {
	state     string
	districts []string
}{
	{"andhra pradesh", []string{"visakhapatnam", "vijayawada", "guntur", "tirupati"}},
	{"arunachal pradesh", []string{"itanagar", "namsai", "pasighat"}},
	{"assam", []string{"guwahati", "silchar", "dibrugarh", "jorhat"}},
	{"bihar", []string{"patna", "gaya", "bhagalpur", "muzaffarpur"}},
	{"chhattisgarh", []string{"raipur", "bilaspur", "durg", "rajnandgaon"}},
	{"delhi", []string{"new delhi", "dwarka", "rohini", "shahdara"}},
	{"goa", []string{"panaji", "margao", "vasco da gama"}},
	{"gujarat", []string{"ahmedabad", "surat", "vadodara", "rajkot"}},
	{"haryana", []string{"gurgaon", "faridabad", "panipat", "karnal"}},
	{"himachal pradesh", []string{"shimla", "dharamshala", "manali", "solan"}},
	{"jammu and kashmir", []string{"srinagar", "jammu", "anantnag", "baramulla"}},
	{"jharkhand", []string{"ranchi", "jamshedpur", "dhanbad", "bokaro"}},
	{"karnataka", []string{"bangalore", "mysore", "hubli", "mangalore"}},
	{"kerala", []string{"thiruvananthapuram", "kochi", "kozhikode", "thrissur"}},
	{"madhya pradesh", []string{"bhopal", "indore", "gwalior", "jabalpur"}},
	{"maharashtra", []string{"mumbai", "pune", "nagpur", "nashik"}},
	{"manipur", []string{"imphal", "thoubal", "bishnupur"}},
	{"meghalaya", []string{"shillong", "tura", "jowai"}},
	{"mizoram", []string{"aizawl", "lunglei", "saiha"}},
	{"nagaland", []string{"kohima", "dimapur", "mokokchung"}},
	{"odisha", []string{"bhubaneswar", "cuttack", "rourkela", "berhampur"}},
	{"punjab", []string{"chandigarh", "ludhiana", "amritsar", "jalandhar"}},
	{"rajasthan", []string{"jaipur", "jodhpur", "udaipur", "kota"}},
	{"sikkim", []string{"gangtok", "namchi", "gyalshing"}},
	{"tamil nadu", []string{"chennai", "coimbatore", "madurai", "tiruchirapalli"}},
	{"telangana", []string{"hyderabad", "warangal", "nizamabad", "khammam"}},
	{"tripura", []string{"agartala", "dharmanagar", "udaypur"}},
	{"uttar pradesh", []string{"lucknow", "kanpur", "agra", "varanasi"}},
	{"uttarakhand", []string{"dehradun", "haridwar", "roorkee", "haldwani"}},
	{"west bengal", []string{"kolkata", "howrah", "durgapur", "asansol"}},
}
