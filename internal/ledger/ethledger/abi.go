package ethledger

// BugContractABI is the ABI of the deployed Bug contract.
const BugContractABI = `[
  {
    "inputs": [
      {"internalType": "string", "name": "_bugId", "type": "string"},
      {"internalType": "string", "name": "_description", "type": "string"},
      {"internalType": "uint8", "name": "_criticality", "type": "uint8"}
    ],
    "name": "addBug",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "_index", "type": "uint256"},
      {"internalType": "bool", "name": "_isResolved", "type": "bool"}
    ],
    "name": "updateBugStatus",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "_index", "type": "uint256"}
    ],
    "name": "deleteBug",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getBugCount",
    "outputs": [
      {"internalType": "uint256", "name": "", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "_index", "type": "uint256"}
    ],
    "name": "getBug",
    "outputs": [
      {"internalType": "string", "name": "bugId", "type": "string"},
      {"internalType": "string", "name": "description", "type": "string"},
      {"internalType": "uint8", "name": "criticality", "type": "uint8"},
      {"internalType": "bool", "name": "isResolved", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const (
	methodCount  = "getBugCount"
	methodGet    = "getBug"
	methodAdd    = "addBug"
	methodStatus = "updateBugStatus"
	methodDelete = "deleteBug"
)
